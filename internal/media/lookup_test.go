package media_test

import (
	"context"
	"errors"
	"testing"

	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/resolver"
	"byline/internal/services/tmdb"
)

type fakeSearcher struct {
	movies    map[string]*tmdb.Response
	series    map[string]*tmdb.Response
	videos    map[int64][]tmdb.Video
	searchErr error
}

func (f *fakeSearcher) SearchMovie(_ context.Context, query string) (*tmdb.Response, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if resp, ok := f.movies[query]; ok {
		return resp, nil
	}
	return &tmdb.Response{}, nil
}

func (f *fakeSearcher) SearchTV(_ context.Context, query string) (*tmdb.Response, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if resp, ok := f.series[query]; ok {
		return resp, nil
	}
	return &tmdb.Response{}, nil
}

func (f *fakeSearcher) MovieVideos(_ context.Context, id int64) ([]tmdb.Video, error) {
	return f.videos[id], nil
}

func (f *fakeSearcher) TVVideos(_ context.Context, id int64) ([]tmdb.Video, error) {
	return f.videos[id], nil
}

type passthroughImages struct{}

func (passthroughImages) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return "https://img.test/" + size + path
}

func plan(title string, intents ...resolver.Intent) resolver.QueryPlan {
	return resolver.QueryPlan{Title: title, Intents: intents}
}

func TestFindPrefersExactTitleMatch(t *testing.T) {
	searcher := &fakeSearcher{
		movies: map[string]*tmdb.Response{
			"King of the Hill": {Results: []tmdb.Result{
				{ID: 1, Title: "King of the Hill Reloaded", Popularity: 99, PosterPath: "/a.jpg"},
				{ID: 2, Title: "king of the hill", Popularity: 1, PosterPath: "/b.jpg", ReleaseDate: "1993-08-20"},
			}},
		},
		videos: map[int64][]tmdb.Video{2: {{Key: "trailer123", Site: "YouTube", Type: "Trailer"}}},
	}
	lookup := media.NewLookup(searcher, passthroughImages{}, logging.NewNop())

	match, err := lookup.Find(context.Background(), plan("King of the Hill", resolver.IntentMovie))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if !match.Exact {
		t.Fatal("expected exact match flag")
	}
	if match.Year != "1993" {
		t.Fatalf("unexpected year %q", match.Year)
	}
	if match.TrailerKey != "trailer123" {
		t.Fatalf("unexpected trailer %q", match.TrailerKey)
	}
	if match.TrailerURL() != "https://www.youtube.com/watch?v=trailer123" {
		t.Fatalf("unexpected trailer url %q", match.TrailerURL())
	}
}

func TestFindFallsBackToPopularity(t *testing.T) {
	searcher := &fakeSearcher{
		movies: map[string]*tmdb.Response{
			"Duna": {Results: []tmdb.Result{
				{ID: 1, Title: "Duna: Prelude", Popularity: 5, PosterPath: "/low.jpg"},
				{ID: 2, Title: "Duna: Parte Dois", Popularity: 80, PosterPath: "/high.jpg"},
			}},
		},
	}
	lookup := media.NewLookup(searcher, passthroughImages{}, logging.NewNop())

	match, err := lookup.Find(context.Background(), plan("Duna", resolver.IntentMovie))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if match == nil || match.Title != "Duna: Parte Dois" {
		t.Fatalf("expected popularity winner, got %+v", match)
	}
	if match.Exact {
		t.Fatal("expected inexact match flag")
	}
}

func TestFindWalksIntentsInOrder(t *testing.T) {
	searcher := &fakeSearcher{
		series: map[string]*tmdb.Response{
			"The Last of Us": {Results: []tmdb.Result{
				{ID: 9, Name: "The Last of Us", Popularity: 50, PosterPath: "/tlou.jpg"},
			}},
		},
	}
	lookup := media.NewLookup(searcher, passthroughImages{}, logging.NewNop())

	match, err := lookup.Find(context.Background(), plan("The Last of Us", resolver.IntentMovie, resolver.IntentSeries))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if match == nil || match.Kind != "series" {
		t.Fatalf("expected series fallback, got %+v", match)
	}
}

func TestFindRejectsCandidatesWithoutAnyMedia(t *testing.T) {
	searcher := &fakeSearcher{
		movies: map[string]*tmdb.Response{
			"Bare": {Results: []tmdb.Result{{ID: 3, Title: "Bare", Popularity: 10}}},
		},
	}
	lookup := media.NewLookup(searcher, passthroughImages{}, logging.NewNop())

	match, err := lookup.Find(context.Background(), plan("Bare", resolver.IntentMovie))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if match != nil {
		t.Fatalf("expected rejection of bare candidate, got %+v", match)
	}
}

func TestFindTreatsOutageAsNoMatch(t *testing.T) {
	searcher := &fakeSearcher{searchErr: errors.New("connection refused")}
	lookup := media.NewLookup(searcher, passthroughImages{}, logging.NewNop())

	match, err := lookup.Find(context.Background(), plan("Anything", resolver.IntentMovie, resolver.IntentSeries))
	if err != nil {
		t.Fatalf("outage must not surface as error, got %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match during outage, got %+v", match)
	}
}

func TestFindEmptyTitleYieldsNoMatch(t *testing.T) {
	lookup := media.NewLookup(&fakeSearcher{}, passthroughImages{}, logging.NewNop())
	match, err := lookup.Find(context.Background(), plan("  ", resolver.IntentMovie))
	if err != nil || match != nil {
		t.Fatalf("expected (nil, nil), got %+v %v", match, err)
	}
}
