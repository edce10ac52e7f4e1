// Package resolver turns noisy article headlines into clean media search
// plans. Extraction runs an ordered list of named rules; the first rule that
// produces a candidate wins, and the raw title is the final fallback so a
// plan always carries a non-empty title.
package resolver

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Intent is a media search category.
type Intent string

const (
	IntentMovie  Intent = "movie"
	IntentSeries Intent = "series"
)

// Task is the resolver's input: the raw article fields plus an optional
// category hint from the post's taxonomy.
type Task struct {
	Title string
	Body  string
	Hint  string
}

// QueryPlan is the deterministic output: a candidate title and the ordered
// intents to try against the catalog. Intents is never empty.
type QueryPlan struct {
	Title   string
	Rule    string
	Intents []Intent
}

// Rule is one named extraction step. Apply returns the extracted candidate
// and whether the rule matched.
type Rule struct {
	Name  string
	Apply func(title string) (string, bool)
}

// Options tunes the resolver. Zero value uses the default rule set.
type Options struct {
	// Rules overrides the extraction pipeline. Nil keeps DefaultRules.
	Rules []Rule
	// ExtraFranchises extends the built-in franchise table.
	ExtraFranchises []string
}

// Resolver extracts titles and builds search plans. Safe for concurrent use;
// it holds no mutable state.
type Resolver struct {
	rules []Rule
}

// New builds a resolver.
func New(opts Options) *Resolver {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules(opts.ExtraFranchises...)
	}
	return &Resolver{rules: rules}
}

// Resolve derives a search plan from the task. Identical input always yields
// an identical plan.
func (r *Resolver) Resolve(task Task) QueryPlan {
	cleaned := CleanTitle(task.Title)
	if cleaned == "" {
		cleaned = CleanTitle(firstSentence(task.Body))
	}

	plan := QueryPlan{Title: cleaned, Rule: "raw-title", Intents: intentsForHint(task.Hint)}
	for _, rule := range r.rules {
		if candidate, ok := rule.Apply(cleaned); ok && strings.TrimSpace(candidate) != "" {
			plan.Title = strings.TrimSpace(candidate)
			plan.Rule = rule.Name
			break
		}
	}
	if plan.Title == "" {
		plan.Title = strings.TrimSpace(task.Title)
	}
	return plan
}

func intentsForHint(hint string) []Intent {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case string(IntentMovie):
		return []Intent{IntentMovie}
	case string(IntentSeries):
		return []Intent{IntentSeries}
	default:
		return []Intent{IntentMovie, IntentSeries}
	}
}

// franchises are titles that appear embedded in headline noise often enough
// to warrant direct matching before any heuristic runs.
var franchises = []string{
	"King of the Hill",
	"Stranger Things",
	"The Last of Us",
	"House of the Dragon",
	"The Walking Dead",
	"Game of Thrones",
	"Star Wars",
	"Jurassic World",
	"Missão Impossível",
	"Velozes e Furiosos",
	"Harry Potter",
	"O Senhor dos Anéis",
}

// stopPhrases are headline fragments that never belong to a media title.
var stopPhrases = []string{
	"confira o trailer",
	"confira",
	"veja o trailer",
	"veja",
	"assista ao trailer",
	"assista",
	"divulgado",
	"divulga",
	"ganha trailer",
	"ganha data",
	"nova temporada",
	"novo trailer",
	"novo filme",
	"nova série",
	"primeiras imagens",
	"data de estreia",
	"estreia",
	"saiba tudo",
	"tudo sobre",
	"entenda",
	"crítica",
	"review",
}

// connectors may stay lowercase inside a capitalized phrase.
var connectors = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true,
	"e": true, "em": true, "a": true, "o": true,
	"of": true, "the": true, "and": true, "in": true, "on": true,
}

var (
	quotedRe        = regexp.MustCompile(`["“‘']([^"”’']{2,80})["”’']`)
	keywordPrefixRe = regexp.MustCompile(`(?i)(?:trailer|teaser|filme|s[ée]rie|temporada|epis[óo]dio|remake|spin-off)\s+(?:de|do|da)\s+(.{2,80})`)
	separatorRe     = regexp.MustCompile(`\s+[|–—-]\s+`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// DefaultRules returns the standard extraction pipeline in priority order.
func DefaultRules(extraFranchises ...string) []Rule {
	table := make([]string, 0, len(franchises)+len(extraFranchises))
	table = append(table, franchises...)
	table = append(table, extraFranchises...)

	return []Rule{
		{Name: "franchise-table", Apply: franchiseRule(table)},
		{Name: "quoted-title", Apply: quotedRule},
		{Name: "keyword-prefix", Apply: keywordPrefixRule},
		{Name: "capitalized-phrase", Apply: capitalizedPhraseRule},
		{Name: "meaningful-words", Apply: meaningfulWordsRule},
	}
}

// CleanTitle strips HTML entities, site-suffix separators, and redundant
// whitespace from a raw headline.
func CleanTitle(raw string) string {
	cleaned := html.UnescapeString(raw)
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", " ")
	if parts := separatorRe.Split(cleaned, 2); len(parts) > 1 {
		// Keep the longer side; site names are usually the short one.
		if len(parts[0]) >= len(parts[1]) {
			cleaned = parts[0]
		} else {
			cleaned = parts[1]
		}
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
}

func franchiseRule(table []string) func(string) (string, bool) {
	return func(title string) (string, bool) {
		lower := strings.ToLower(title)
		best := ""
		for _, franchise := range table {
			if strings.Contains(lower, strings.ToLower(franchise)) && len(franchise) > len(best) {
				best = franchise
			}
		}
		return best, best != ""
	}
}

func quotedRule(title string) (string, bool) {
	match := quotedRe.FindStringSubmatch(title)
	if match == nil {
		return "", false
	}
	candidate := strings.TrimSpace(match[1])
	if isStopPhrase(candidate) {
		return "", false
	}
	return candidate, true
}

func keywordPrefixRule(title string) (string, bool) {
	match := keywordPrefixRe.FindStringSubmatch(title)
	if match == nil {
		return "", false
	}
	candidate := trimTrailingClause(match[1])
	if candidate == "" || isStopPhrase(candidate) {
		return "", false
	}
	if !startsCapitalized(candidate) {
		return "", false
	}
	return candidate, true
}

// capitalizedPhraseRule picks the longest run of capitalized words, allowing
// lowercase connectors in the middle, skipping runs on the stoplist.
func capitalizedPhraseRule(title string) (string, bool) {
	words := strings.Fields(title)
	best := ""
	var current []string

	flush := func() {
		// Trailing connectors are never part of a title.
		for len(current) > 0 && connectors[strings.ToLower(current[len(current)-1])] {
			current = current[:len(current)-1]
		}
		if len(current) >= 2 {
			candidate := strings.Join(current, " ")
			if !isStopPhrase(candidate) && len(candidate) > len(best) {
				best = candidate
			}
		}
		current = nil
	}

	for _, word := range words {
		trimmed := strings.Trim(word, ",.:;!?()[]")
		switch {
		case trimmed == "":
			flush()
		case startsCapitalized(trimmed):
			current = append(current, trimmed)
		case len(current) > 0 && connectors[strings.ToLower(trimmed)]:
			current = append(current, trimmed)
		default:
			flush()
		}
	}
	flush()

	return best, best != ""
}

// meaningfulWordsRule drops stop-phrase words and returns what is left in
// title case. Last heuristic before falling back to the raw headline.
func meaningfulWordsRule(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, phrase := range stopPhrases {
		lower = strings.ReplaceAll(lower, phrase, " ")
	}
	words := strings.Fields(lower)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		trimmed := strings.Trim(word, ",.:;!?()[]\"“”")
		if trimmed == "" || connectors[trimmed] {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) == 0 {
		return "", false
	}
	caser := cases.Title(language.BrazilianPortuguese)
	return caser.String(strings.Join(kept, " ")), true
}

func isStopPhrase(candidate string) bool {
	lower := strings.ToLower(strings.TrimSpace(candidate))
	for _, phrase := range stopPhrases {
		if lower == phrase || strings.HasPrefix(lower, phrase+" ") {
			return true
		}
	}
	return strings.HasSuffix(lower, "?")
}

func startsCapitalized(word string) bool {
	for _, r := range word {
		return r >= 'A' && r <= 'Z' || r >= 'À' && r <= 'Ý' || r >= '0' && r <= '9'
	}
	return false
}

func trimTrailingClause(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	for _, sep := range []string{",", ";", ":", "!", "?", "."} {
		if idx := strings.Index(candidate, sep); idx > 0 {
			candidate = candidate[:idx]
		}
	}
	// Cut promotional tails like "que estreia em ...".
	lower := strings.ToLower(candidate)
	for _, tail := range []string{" que ", " chega ", " estreia ", " ganha "} {
		if idx := strings.Index(lower, tail); idx > 0 {
			candidate = candidate[:idx]
			lower = lower[:idx]
		}
	}
	return strings.TrimSpace(candidate)
}

func firstSentence(body string) string {
	text := html.UnescapeString(stripTags(body))
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.Index(text, sep); idx > 0 {
			return text[:idx]
		}
	}
	// Truncate on a rune boundary so multibyte characters survive intact.
	if runes := []rune(text); len(runes) > 120 {
		return string(runes[:120])
	}
	return text
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, " "))
}
