package gemini

import (
	"fmt"
	"strings"

	"byline/internal/media"
	"byline/internal/services"
)

// EnrichedContent is the parsed, validated model output for one article.
type EnrichedContent struct {
	Title      string
	Excerpt    string
	Body       string
	Credential string
	RequestID  string
}

// Parse splits the raw model output into the three required sections. Any
// missing or empty section is a malformed response.
func Parse(raw string) (*EnrichedContent, error) {
	title, rest, err := cutSection(raw, sectionTitle, sectionExcerpt)
	if err != nil {
		return nil, err
	}
	excerpt, body, err := cutSection(rest, sectionExcerpt, sectionBody)
	if err != nil {
		return nil, err
	}

	bodyIdx := strings.Index(body, sectionBody)
	content := strings.TrimSpace(body[bodyIdx+len(sectionBody):])
	if content == "" {
		return nil, services.Wrap(services.ErrMalformedResponse, "gemini", "parse", "empty content section", nil)
	}

	return &EnrichedContent{
		Title:   strings.TrimSpace(title),
		Excerpt: strings.TrimSpace(excerpt),
		Body:    content,
	}, nil
}

// cutSection extracts the text between the start marker and the next marker,
// returning the extracted value and the remainder starting at next.
func cutSection(raw, start, next string) (string, string, error) {
	startIdx := strings.Index(raw, start)
	if startIdx < 0 {
		return "", "", services.Wrap(services.ErrMalformedResponse, "gemini", "parse", fmt.Sprintf("missing %q section", strings.Trim(start, "#: ")), nil)
	}
	rest := raw[startIdx+len(start):]
	nextIdx := strings.Index(rest, next)
	if nextIdx < 0 {
		return "", "", services.Wrap(services.ErrMalformedResponse, "gemini", "parse", fmt.Sprintf("missing %q section", strings.Trim(next, "#: ")), nil)
	}
	value := strings.TrimSpace(rest[:nextIdx])
	if value == "" {
		return "", "", services.Wrap(services.ErrMalformedResponse, "gemini", "parse", fmt.Sprintf("empty %q section", strings.Trim(start, "#: ")), nil)
	}
	return value, rest[nextIdx:], nil
}

// Validate enforces the formatting contract the prompt demanded: bold
// markup always, internal tag links when tags were supplied, and embedded
// media markup when media context was given.
func Validate(content *EnrichedContent, article Article, match *media.Match, domain string) error {
	if content == nil {
		return services.Wrap(services.ErrMalformedResponse, "gemini", "validate", "nil content", nil)
	}
	if !strings.Contains(content.Body, "<b>") {
		return services.Wrap(services.ErrMalformedResponse, "gemini", "validate", "missing bold markup", nil)
	}
	if len(article.Tags) > 0 && domain != "" {
		if !strings.Contains(content.Body, fmt.Sprintf("href=\"https://%s/tag/", domain)) {
			return services.Wrap(services.ErrMalformedResponse, "gemini", "validate", "missing internal tag links", nil)
		}
	}
	if match != nil {
		if !strings.Contains(content.Body, "<img") && !strings.Contains(content.Body, "<iframe") {
			return services.Wrap(services.ErrMalformedResponse, "gemini", "validate", "missing embedded media markup", nil)
		}
	}
	return nil
}
