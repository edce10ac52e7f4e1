// Package tmdb wraps The Movie Database API endpoints used by the media
// lookup step: title search for movies and series, trailer discovery, and
// image URL construction.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result represents a single TMDB search match.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// DisplayTitle returns the movie title or series name, whichever is set.
func (r Result) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.Name
}

// Year extracts the release year from whichever date field is populated.
func (r Result) Year() string {
	date := r.ReleaseDate
	if strings.TrimSpace(date) == "" {
		date = r.FirstAirDate
	}
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Video describes one entry from the TMDB videos endpoint.
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type videosResponse struct {
	Results []Video `json:"results"`
}

// Searcher defines the TMDB operations the media lookup step depends on.
type Searcher interface {
	SearchMovie(ctx context.Context, query string) (*Response, error)
	SearchTV(ctx context.Context, query string) (*Response, error)
	MovieVideos(ctx context.Context, movieID int64) ([]Video, error)
	TVVideos(ctx context.Context, showID int64) ([]Video, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	httpClient   *http.Client
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithImageBaseURL overrides the image CDN base URL.
func WithImageBaseURL(base string) Option {
	return func(c *Client) {
		if strings.TrimSpace(base) != "" {
			c.imageBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: "https://image.tmdb.org/t/p",
		language:     strings.TrimSpace(language),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchMovie searches TMDB movies for the supplied title.
func (c *Client) SearchMovie(ctx context.Context, query string) (*Response, error) {
	return c.search(ctx, "/search/movie", query)
}

// SearchTV searches TMDB series for the supplied title.
func (c *Client) SearchTV(ctx context.Context, query string) (*Response, error) {
	return c.search(ctx, "/search/tv", query)
}

func (c *Client) search(ctx context.Context, path, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	var payload Response
	if err := c.get(ctx, endpoint.String(), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// TestConnection verifies the API key against the configuration endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	endpoint, err := url.Parse(c.baseURL + "/configuration")
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	var payload struct {
		Images map[string]any `json:"images"`
	}
	return c.get(ctx, endpoint.String(), &payload)
}

// MovieVideos returns YouTube trailers and teasers for a movie, trailers
// first, official entries ahead of fan uploads.
func (c *Client) MovieVideos(ctx context.Context, movieID int64) ([]Video, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	return c.videos(ctx, fmt.Sprintf("%s/movie/%d/videos", c.baseURL, movieID))
}

// TVVideos returns YouTube trailers and teasers for a series.
func (c *Client) TVVideos(ctx context.Context, showID int64) ([]Video, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	return c.videos(ctx, fmt.Sprintf("%s/tv/%d/videos", c.baseURL, showID))
}

func (c *Client) videos(ctx context.Context, rawURL string) ([]Video, error) {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	var payload videosResponse
	if err := c.get(ctx, endpoint.String(), &payload); err != nil {
		return nil, err
	}
	return FilterTrailers(payload.Results), nil
}

// FilterTrailers keeps YouTube trailers and teasers, ordered trailers first
// and official uploads ahead of the rest.
func FilterTrailers(videos []Video) []Video {
	var trailers, teasers []Video
	for _, video := range videos {
		if !strings.EqualFold(video.Site, "YouTube") || video.Key == "" {
			continue
		}
		switch strings.ToLower(video.Type) {
		case "trailer":
			trailers = append(trailers, video)
		case "teaser":
			teasers = append(teasers, video)
		}
	}
	ordered := make([]Video, 0, len(trailers)+len(teasers))
	for _, group := range [][]Video{trailers, teasers} {
		for _, video := range group {
			if video.Official {
				ordered = append(ordered, video)
			}
		}
		for _, video := range group {
			if !video.Official {
				ordered = append(ordered, video)
			}
		}
	}
	return ordered
}

// ImageURL builds a CDN URL for the given image path and size (for example
// "w500" for posters, "w780" for backdrops). Empty paths yield "".
func (c *Client) ImageURL(path, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.TrimSpace(size) == "" {
		size = "original"
	}
	return c.imageBaseURL + "/" + size + path
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb returned %d (latency=%v)", resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}
