// Package media matches resolver query plans against the TMDB catalog and
// returns structured media context for enrichment. A missing match is a
// valid outcome, never an error, and catalog outages degrade to "no media"
// so one flaky lookup cannot fail an article.
package media

import (
	"context"
	"log/slog"
	"strings"

	"byline/internal/logging"
	"byline/internal/resolver"
	"byline/internal/services/tmdb"
)

const (
	posterSize   = "w500"
	backdropSize = "w780"
)

// Match is the media context attached to an enrichment request.
type Match struct {
	Title      string `json:"title"`
	Year       string `json:"year"`
	Kind       string `json:"kind"`
	PosterURL  string `json:"poster_url,omitempty"`
	Backdrop   string `json:"backdrop_url,omitempty"`
	TrailerKey string `json:"trailer_key,omitempty"`
	Exact      bool   `json:"exact"`
}

// TrailerURL returns the YouTube watch URL for the trailer, or "".
func (m Match) TrailerURL() string {
	if m.TrailerKey == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + m.TrailerKey
}

// ImageResolver builds CDN URLs from TMDB image paths.
type ImageResolver interface {
	ImageURL(path, size string) string
}

// Lookup walks a query plan's intents against the catalog.
type Lookup struct {
	searcher tmdb.Searcher
	images   ImageResolver
	logger   *slog.Logger
}

// NewLookup builds a lookup client. images may be nil when the searcher does
// not provide CDN resolution (matches then carry raw paths only).
func NewLookup(searcher tmdb.Searcher, images ImageResolver, logger *slog.Logger) *Lookup {
	return &Lookup{
		searcher: searcher,
		images:   images,
		logger:   logging.NewComponentLogger(logger, "media"),
	}
}

// Find queries each intent in plan order and returns the first accepted
// match. Returns (nil, nil) when no intent yields an acceptable candidate or
// the catalog is unavailable.
func (l *Lookup) Find(ctx context.Context, plan resolver.QueryPlan) (*Match, error) {
	title := strings.TrimSpace(plan.Title)
	if title == "" {
		return nil, nil
	}

	for _, intent := range plan.Intents {
		match, err := l.findByIntent(ctx, title, intent)
		if err != nil {
			// Catalog outage is a per-item degradation, not a failure.
			l.logger.Warn("catalog lookup failed",
				logging.String("title", title),
				logging.String("intent", string(intent)),
				logging.Error(err))
			continue
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, nil
}

func (l *Lookup) findByIntent(ctx context.Context, title string, intent resolver.Intent) (*Match, error) {
	var (
		resp *tmdb.Response
		err  error
	)
	switch intent {
	case resolver.IntentSeries:
		resp, err = l.searcher.SearchTV(ctx, title)
	default:
		resp, err = l.searcher.SearchMovie(ctx, title)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Results) == 0 {
		return nil, nil
	}

	best, exact := pickBest(title, resp.Results)
	match := &Match{
		Title: best.DisplayTitle(),
		Year:  best.Year(),
		Kind:  string(intent),
		Exact: exact,
	}
	if l.images != nil {
		match.PosterURL = l.images.ImageURL(best.PosterPath, posterSize)
		match.Backdrop = l.images.ImageURL(best.BackdropPath, backdropSize)
	}

	match.TrailerKey = l.trailerKey(ctx, best.ID, intent)

	// A candidate with no poster, no backdrop, and no trailer carries
	// nothing worth embedding.
	if match.PosterURL == "" && match.Backdrop == "" && match.TrailerKey == "" {
		return nil, nil
	}
	return match, nil
}

func (l *Lookup) trailerKey(ctx context.Context, id int64, intent resolver.Intent) string {
	var (
		videos []tmdb.Video
		err    error
	)
	switch intent {
	case resolver.IntentSeries:
		videos, err = l.searcher.TVVideos(ctx, id)
	default:
		videos, err = l.searcher.MovieVideos(ctx, id)
	}
	if err != nil {
		l.logger.Debug("trailer lookup failed", logging.Int64("tmdb_id", id), logging.Error(err))
		return ""
	}
	if len(videos) == 0 {
		return ""
	}
	return videos[0].Key
}

// pickBest prefers an exact case-insensitive title match, falling back to
// the highest catalog popularity.
func pickBest(query string, results []tmdb.Result) (tmdb.Result, bool) {
	for _, result := range results {
		if strings.EqualFold(strings.TrimSpace(result.DisplayTitle()), query) {
			return result, true
		}
	}
	best := results[0]
	for _, result := range results[1:] {
		if result.Popularity > best.Popularity {
			best = result
		}
	}
	return best, false
}
