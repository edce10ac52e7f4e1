// Package gemini implements the resilient text-generation client. Requests
// rotate across the credential pool on quota exhaustion, back off
// exponentially on transient transport failures, and re-ask once per attempt
// when the model returns output that breaks the formatting contract.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"byline/internal/credentials"
	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/services"
)

const (
	defaultHTTPTimeout   = 120 * time.Second
	defaultRetryAttempts = 5
	defaultBackoffBase   = 1 * time.Second
	defaultBackoffCap    = 16 * time.Second
)

// Config captures the runtime settings for the text-generation service.
type Config struct {
	BaseURL         string
	Model           string
	Domain          string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// Client issues enrichment requests through the credential pool.
type Client struct {
	cfg        Config
	pool       *credentials.Pool
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	backoffBase      time.Duration
	backoffCap       time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the per-article attempt budget (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the backoff base and cap.
func WithRetryBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if cap > 0 {
			c.backoffCap = cap
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs the resilient client around a credential pool.
func NewClient(cfg Config, pool *credentials.Pool, logger *slog.Logger, opts ...Option) (*Client, error) {
	if pool == nil {
		return nil, errors.New("gemini client: credential pool required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, errors.New("gemini client: model required")
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:              cfg,
		pool:             pool,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(logger, "gemini"),
		retryMaxAttempts: defaultRetryAttempts,
		backoffBase:      defaultBackoffBase,
		backoffCap:       defaultBackoffCap,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Enrich runs the full request protocol for one article. On success the
// returned content records which credential and request id produced it.
func (c *Client) Enrich(ctx context.Context, article Article, match *media.Match) (*EnrichedContent, error) {
	prompt := BuildPrompt(article, match, c.cfg.Domain)

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		cred, err := c.pool.Current()
		if err != nil {
			return nil, err
		}

		requestID := uuid.NewString()
		reqCtx := services.WithRequestID(ctx, requestID)
		logger := logging.WithContext(reqCtx, c.logger).With(
			logging.String(logging.FieldCredential, cred.ID),
			logging.Int("attempt", attempt))

		raw, err := c.generateOnce(reqCtx, cred, prompt)
		if err == nil {
			var content *EnrichedContent
			content, err = Parse(raw)
			if err == nil {
				err = Validate(content, article, match, c.cfg.Domain)
			}
			if err == nil {
				c.pool.MarkSuccess(cred.ID)
				content.Credential = cred.ID
				content.RequestID = requestID
				return content, nil
			}
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		switch {
		case errors.Is(err, services.ErrQuotaExceeded):
			hint := retryAfterHint(err)
			c.pool.MarkExhausted(cred.ID, hint)
			logger.Warn("credential exhausted, failing over",
				logging.String(logging.FieldEventType, "credential_switch"),
				logging.Duration("retry_after_hint", hint),
				logging.Error(err))
			if c.pool.AllExhausted() {
				return nil, services.Wrap(services.ErrAllCredentialsExhausted, "gemini", "enrich", "no credential left to fail over to", err)
			}
			// Failover retries immediately; the switch itself costs no delay.
			continue
		case services.IsRetryable(err):
			delay := c.backoffDelay(attempt)
			logger.Debug("retrying after transient failure",
				logging.Duration("delay", delay),
				logging.Error(err))
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
		default:
			return nil, err
		}
	}

	return nil, services.Wrap(services.ErrRetryBudgetExceeded, "gemini", "enrich", fmt.Sprintf("failed after %d attempts", c.retryMaxAttempts), lastErr)
}

// HealthCheck issues a minimal generation request to verify the active
// credential and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	cred, err := c.pool.Current()
	if err != nil {
		return err
	}
	_, err = c.generateOnce(ctx, cred, "Responda apenas: ok")
	return err
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generateOnce(ctx context.Context, cred credentials.Credential, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(cred.Secret))

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "gemini", "request", "read body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatusError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrMalformedResponse, "gemini", "request", "decode response", err)
	}
	if parsed.Error != nil {
		return "", classifyStatusError(parsed.Error.Code, parsed.Error.Status+" "+parsed.Error.Message, "")
	}
	if len(parsed.Candidates) == 0 {
		return "", services.Wrap(services.ErrMalformedResponse, "gemini", "request", "no candidates returned", nil)
	}

	var text strings.Builder
	for _, candidate := range parsed.Candidates[:1] {
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", services.Wrap(services.ErrMalformedResponse, "gemini", "request", "empty candidate text", nil)
	}
	return text.String(), nil
}

// quotaError keeps the provider's retry hint attached to the classified error.
type quotaError struct {
	err  error
	hint time.Duration
}

func (q *quotaError) Error() string { return q.err.Error() }

func (q *quotaError) Unwrap() error { return q.err }

func retryAfterHint(err error) time.Duration {
	var qe *quotaError
	if errors.As(err, &qe) {
		return qe.hint
	}
	return 0
}

var retryDelayRe = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`)

func classifyStatusError(status int, body, retryAfterHeader string) error {
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(body, "RESOURCE_EXHAUSTED") || containsQuotaMarker(body):
		hint := parseRetryAfter(retryAfterHeader)
		if hint == 0 {
			if m := retryDelayRe.FindStringSubmatch(body); m != nil {
				if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
					hint = time.Duration(seconds * float64(time.Second))
				}
			}
		}
		base := services.Wrap(services.ErrQuotaExceeded, "gemini", "request", fmt.Sprintf("provider signalled quota limit (%d)", status), nil)
		return &quotaError{err: base, hint: hint}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "gemini", "request", fmt.Sprintf("credential rejected (%d)", status), nil)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "gemini", "request", fmt.Sprintf("provider returned %d", status), nil)
	default:
		return services.Wrap(services.ErrValidation, "gemini", "request", fmt.Sprintf("provider rejected request (%d)", status), nil)
	}
}

func containsQuotaMarker(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit")
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "gemini", "request", "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "gemini", "request", "transport failure", err)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

// backoffDelay doubles per attempt from the base, capped: attempt 1 waits
// base, attempt 2 waits base*2, and so on.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.backoffBase <= 0 {
		return 0
	}
	delay := c.backoffBase
	for i := 1; i < attempt; i++ {
		if delay > c.backoffCap/2 {
			delay = c.backoffCap
			break
		}
		delay *= 2
	}
	if c.backoffCap > 0 && delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
