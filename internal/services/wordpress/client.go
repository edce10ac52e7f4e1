// Package wordpress wraps the WordPress REST API calls the pipeline needs:
// listing recent posts by author, reading a single post, and writing an
// enriched revision back. Authentication uses an application password over
// basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"byline/internal/services"
)

// Term is a category or tag attached to a post.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Post is the subset of a WordPress post the pipeline operates on. Title and
// body text are already unescaped from the rendered HTML payload.
type Post struct {
	ID         int64
	Title      string
	Content    string
	Excerpt    string
	Link       string
	Published  time.Time
	Tags       []Term
	Categories []Term
}

// CategoryHint values derived from a post's categories.
const (
	HintNone   = ""
	HintMovie  = "movie"
	HintSeries = "series"
)

// CategoryHint inspects the post's categories for a movie or series signal.
// Returns HintNone when neither (or both) apply.
func (p Post) CategoryHint() string {
	var movie, series bool
	for _, term := range p.Categories {
		key := strings.ToLower(term.Slug + " " + term.Name)
		switch {
		case strings.Contains(key, "filme") || strings.Contains(key, "movie") || strings.Contains(key, "cinema"):
			movie = true
		case strings.Contains(key, "serie") || strings.Contains(key, "série") || strings.Contains(key, "tv"):
			series = true
		}
	}
	switch {
	case movie && !series:
		return HintMovie
	case series && !movie:
		return HintSeries
	default:
		return HintNone
	}
}

// TagNames returns the post's tag names in order.
func (p Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if strings.TrimSpace(tag.Name) != "" {
			names = append(names, tag.Name)
		}
	}
	return names
}

// PostUpdate carries the enriched fields written back to a post.
type PostUpdate struct {
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Content string `json:"content,omitempty"`
}

// Backend defines the WordPress operations the cycle depends on.
type Backend interface {
	FetchEligible(ctx context.Context, authorID int64, since time.Time) ([]Post, error)
	GetPost(ctx context.Context, postID int64) (*Post, error)
	ApplyUpdate(ctx context.Context, postID int64, update PostUpdate) error
	TestConnection(ctx context.Context) error
}

// Client talks to the WordPress REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

var _ Backend = (*Client)(nil)

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

// New creates a WordPress client.
func New(baseURL, username, appPassword string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("wordpress base url required")
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(appPassword) == "" {
		return nil, errors.New("wordpress credentials required")
	}
	client := &Client{
		baseURL:    baseURL,
		username:   strings.TrimSpace(username),
		password:   strings.TrimSpace(appPassword),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type postPayload struct {
	ID       int64    `json:"id"`
	DateGMT  string   `json:"date_gmt"`
	Link     string   `json:"link"`
	Title    rendered `json:"title"`
	Content  rendered `json:"content"`
	Excerpt  rendered `json:"excerpt"`
	Embedded struct {
		Terms [][]Term `json:"wp:term"`
	} `json:"_embedded"`
}

func (p postPayload) toPost() Post {
	post := Post{
		ID:      p.ID,
		Title:   html.UnescapeString(strings.TrimSpace(p.Title.Rendered)),
		Content: p.Content.Rendered,
		Excerpt: strings.TrimSpace(p.Excerpt.Rendered),
		Link:    p.Link,
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", p.DateGMT); err == nil {
		post.Published = ts.UTC()
	}
	// _embedded wp:term groups taxonomies: categories first, then tags.
	if len(p.Embedded.Terms) > 0 {
		post.Categories = append(post.Categories, p.Embedded.Terms[0]...)
	}
	if len(p.Embedded.Terms) > 1 {
		post.Tags = append(post.Tags, p.Embedded.Terms[1]...)
	}
	return post
}

// FetchEligible lists published posts by the author since the given time,
// oldest first, with embedded category and tag terms.
func (c *Client) FetchEligible(ctx context.Context, authorID int64, since time.Time) ([]Post, error) {
	endpoint, err := url.Parse(c.baseURL + "/wp-json/wp/v2/posts")
	if err != nil {
		return nil, fmt.Errorf("parse wordpress url: %w", err)
	}
	params := url.Values{}
	params.Set("author", strconv.FormatInt(authorID, 10))
	params.Set("after", since.UTC().Format("2006-01-02T15:04:05"))
	params.Set("status", "publish")
	params.Set("orderby", "date")
	params.Set("order", "asc")
	params.Set("per_page", "50")
	params.Set("_embed", "wp:term")
	endpoint.RawQuery = params.Encode()

	var payloads []postPayload
	if err := c.do(ctx, http.MethodGet, endpoint.String(), nil, &payloads); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(payloads))
	for _, payload := range payloads {
		posts = append(posts, payload.toPost())
	}
	return posts, nil
}

// GetPost fetches a single post with embedded terms.
func (c *Client) GetPost(ctx context.Context, postID int64) (*Post, error) {
	if postID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "wordpress", "get post", "post id must be positive", nil)
	}
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d?_embed=wp:term", c.baseURL, postID)

	var payload postPayload
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	post := payload.toPost()
	return &post, nil
}

// ApplyUpdate writes the enriched fields back to the post.
func (c *Client) ApplyUpdate(ctx context.Context, postID int64, update PostUpdate) error {
	if postID <= 0 {
		return services.Wrap(services.ErrValidation, "wordpress", "apply update", "post id must be positive", nil)
	}
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d", c.baseURL, postID)
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// TestConnection verifies credentials by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) error {
	endpoint := c.baseURL + "/wp-json/wp/v2/users/me"
	return c.do(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "wordpress", method, "execute request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "wordpress", method, fmt.Sprintf("%s returned 404", rawURL), nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "wordpress", method, fmt.Sprintf("authentication rejected (%d)", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return services.Wrap(services.ErrTransient, "wordpress", method, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrMalformedResponse, "wordpress", method, "decode response", err)
	}
	return nil
}
