// Package nearblocks is a client for the nearblocks explorer REST feeds.
package nearblocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amr0ny/bc-parser/service/metrics"
)

// ErrUnexpectedStatus is returned when a feed answers with anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Feed names used in logs and metrics.
const (
	FeedTxns      = "txns"
	FeedTxn       = "txn"
	FeedAccount   = "account"
	FeedInventory = "inventory"
)

// Endpoints holds the base URL of every feed.
type Endpoints struct {
	// Txns is queried with a=<account>&contract_name=<contract>&page=<n>.
	Txns string
	// Txn is suffixed with /<hash>.
	Txn string
	// Account is suffixed with /<account> and /<account>/inventory.
	Account string
}

// Client fetches and decodes explorer feeds.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new explorer client.
// If httpClient is nil a client with a 30s timeout is used. If metrics is nil, no metrics will be recorded.
func NewClient(endpoints Endpoints, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Txns fetches one page of the account's token transactions, newest first.
func (c *Client) Txns(ctx context.Context, account, contract string, page int) ([]Txn, error) {
	q := url.Values{}
	q.Set("a", account)
	q.Set("contract_name", contract)
	q.Set("page", strconv.Itoa(page))

	var resp txnsResponse
	if err := c.getJSON(ctx, FeedTxns, c.endpoints.Txns+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Txns, nil
}

// TxnDetail fetches the receipts of a single transaction.
func (c *Client) TxnDetail(ctx context.Context, hash string) (*TxnDetail, error) {
	var resp TxnDetail
	if err := c.getJSON(ctx, FeedTxn, joinPath(c.endpoints.Txn, hash), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NativeBalance returns the raw yoctoNEAR amount of the account, or nil when the feed has none.
func (c *Client) NativeBalance(ctx context.Context, account string) (any, error) {
	var resp accountResponse
	if err := c.getJSON(ctx, FeedAccount, joinPath(c.endpoints.Account, account), &resp); err != nil {
		return nil, err
	}
	if len(resp.Account) == 0 {
		return nil, nil
	}
	return resp.Account[0].Amount, nil
}

// Inventory returns the account's fungible-token balances.
func (c *Client) Inventory(ctx context.Context, account string) ([]FT, error) {
	var resp inventoryResponse
	u := joinPath(c.endpoints.Account, account) + "/inventory"
	if err := c.getJSON(ctx, FeedInventory, u, &resp); err != nil {
		return nil, err
	}
	return resp.Inventory.FTs, nil
}

// getJSON performs a GET and decodes the body into out.
// Numbers are decoded as json.Number so yocto amounts keep full precision.
func (c *Client) getJSON(ctx context.Context, feed, u string, out any) error {
	c.logger.DebugContext(ctx, "fetching feed", "feed", feed, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordExplorerCall(feed, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s request failed: %w", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordExplorerCall(feed, "error", time.Since(start).Seconds())
		if resp.StatusCode == http.StatusTooManyRequests {
			c.metrics.RecordRateLimitHit(feed)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "unexpected feed status",
			"feed", feed,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, feed, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		c.metrics.RecordExplorerCall(feed, "error", time.Since(start).Seconds())
		return fmt.Errorf("failed to decode %s response: %w", feed, err)
	}

	c.metrics.RecordExplorerCall(feed, "success", time.Since(start).Seconds())
	return nil
}

func joinPath(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(segment)
}
