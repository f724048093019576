package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/config"
)

const (
	probeName      = "bridge"
	maxBodySize    = 8 << 20
	defaultTimeout = 10 * time.Second
)

// Client is a rate-limited reader of the bridge network REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client for cfg. A non-positive rate disables limiting.
func NewClient(cfg *config.BridgeConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if prefix := strings.Trim(cfg.APIPrefix, "/"); prefix != "" {
		base += "/" + prefix
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("component", "bridge_client")),
	}
}

// Pools returns every pool with a non-empty asset identifier.
func (c *Client) Pools(ctx context.Context) ([]Pool, error) {
	var raw []Pool
	if err := c.getJSON(ctx, "/pools", &raw); err != nil {
		return nil, err
	}
	pools := make([]Pool, 0, len(raw))
	for _, p := range raw {
		if p.Asset == "" {
			c.logger.Warn("Skipping pool without asset")
			continue
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// OutboundQueue returns the pending payouts that reference an inbound hash.
func (c *Client) OutboundQueue(ctx context.Context) ([]OutboundEntry, error) {
	var raw []OutboundEntry
	if err := c.getJSON(ctx, "/queue/outbound", &raw); err != nil {
		return nil, err
	}
	entries := raw[:0]
	for _, e := range raw {
		if e.InHash == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Network returns the live fee parameters.
func (c *Client) Network(ctx context.Context) (*Network, error) {
	var n Network
	if err := c.getJSON(ctx, "/network", &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return chain.Transient(probeName, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return chain.Transient(probeName, fmt.Errorf("GET %s: %w", path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return chain.Transient(probeName, fmt.Errorf("failed to read %s: %w", path, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chain.Transient(probeName, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return chain.Transient(probeName, fmt.Errorf("failed to decode %s: %w", path, err))
	}
	return nil
}
