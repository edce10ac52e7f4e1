package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"time"

	"byline/internal/cycle"
	"byline/internal/daemon"
	"byline/internal/ledger"
)

// apiClient talks to the daemon HTTP API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(address, token string) (*apiClient, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("daemon API address is not configured; set paths.api_bind or pass --api")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &apiClient{
		baseURL:    strings.TrimRight(address, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (c *apiClient) Status(ctx context.Context) (*daemon.Status, error) {
	var status daemon.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) History(ctx context.Context, limit int) ([]*ledger.Record, error) {
	var payload struct {
		Records []*ledger.Record `json:"records"`
	}
	path := "/api/history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	if err := c.do(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

func (c *apiClient) Cycles(ctx context.Context, limit int) ([]ledger.CycleSummary, error) {
	var payload struct {
		Cycles []ledger.CycleSummary `json:"cycles"`
	}
	path := "/api/cycles"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	if err := c.do(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, err
	}
	return payload.Cycles, nil
}

func (c *apiClient) Metrics(ctx context.Context, days int) ([]ledger.DailyMetrics, error) {
	var payload struct {
		Metrics []ledger.DailyMetrics `json:"metrics"`
	}
	path := "/api/metrics"
	if days > 0 {
		path = fmt.Sprintf("%s?days=%d", path, days)
	}
	if err := c.do(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, err
	}
	return payload.Metrics, nil
}

func (c *apiClient) Enrich(ctx context.Context, postID int64, force bool) error {
	path := fmt.Sprintf("/api/enrich/%d", postID)
	if force {
		path += "?force=1"
	}
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *apiClient) Run(ctx context.Context) (*cycle.Result, error) {
	var result cycle.Result
	if err := c.do(ctx, http.MethodPost, "/api/run", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; verify bylined is running", base)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
