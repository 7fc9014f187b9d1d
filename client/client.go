package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/worker"
)

// ErrNotFound is returned when the server has no record for the requested name.
var ErrNotFound = errors.New("record not found")

// Status is the server's view of the cache and, when available, the cycle runner.
type Status struct {
	CachedRecords int64          `json:"cached_records"`
	Runner        *worker.Status `json:"runner,omitempty"`
}

// LocateResult is the outcome of a live lookup.
type LocateResult struct {
	Record *record.Record `json:"record"`
	Found  bool           `json:"found"`
}

// Client is the HTTP client for the bc-parser status server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new status server client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// ListRecords returns the cached records in report order.
func (c *Client) ListRecords(ctx context.Context) ([]*record.Record, error) {
	var apiResp struct {
		Records []*record.Record `json:"records"`
		Count   int              `json:"count"`
	}
	if err := c.getJSON(ctx, "/api/v1/records", &apiResp); err != nil {
		return nil, err
	}

	c.logger.Debug("records listed", "count", apiResp.Count)
	return apiResp.Records, nil
}

// GetRecord returns the cached record for name, or ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, name string) (*record.Record, error) {
	var rec record.Record
	if err := c.getJSON(ctx, "/api/v1/records/"+url.PathEscape(name), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Locate asks the server to run a live lookup for account.
func (c *Client) Locate(ctx context.Context, account, claimPeriod string) (*LocateResult, error) {
	path := "/api/v1/locate/" + url.PathEscape(account)
	if claimPeriod != "" {
		path += "?" + url.Values{"claim_period": {claimPeriod}}.Encode()
	}

	var result LocateResult
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status returns the cache size and runner state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.getJSON(ctx, "/api/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse extracts the error message from an error response.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
