// Package coinlore is the resilient client for the CoinLore market-data
// API. Every operation runs the same pipeline: response cache, then
// reachability gate, then rate-limit slot, then an attempt loop with
// exponential backoff, with the outcome classified into the apierr
// taxonomy.
package coinlore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/apierr"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/infra"
)

// Reachability is the connectivity gate the client consults before
// spending a rate-limit slot.
type Reachability interface {
	Reachable() bool
}

// Config holds client tunables. Zero values fall back to the defaults
// of the CoinLore free tier.
type Config struct {
	BaseURL           string
	UserAgent         string
	MaxRetries        int
	RequestTimeout    time.Duration // bounds a single attempt
	ResourceTimeout   time.Duration // bounds a full transfer
	FavoritesScanSize int           // how deep the nameid scan reaches
	MaxSearchResults  int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.coinlore.net/api"
	}
	if c.UserAgent == "" {
		c.UserAgent = "CryptoListWatch/1.0"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ResourceTimeout <= 0 {
		c.ResourceTimeout = 120 * time.Second
	}
	if c.FavoritesScanSize <= 0 {
		c.FavoritesScanSize = 1000
	}
	if c.MaxSearchResults <= 0 {
		c.MaxSearchResults = 50
	}
}

// Client fetches market data with caching, rate limiting and retries.
// Prices are USD; display-currency conversion happens downstream.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *infra.ResponseCache
	limiter    *infra.RateLimiter
	monitor    Reachability

	// overridable in tests
	backoff func(attempt int) time.Duration
}

// New builds a client over the shared cache, limiter and monitor.
func New(cfg Config, cache *infra.ResponseCache, limiter *infra.RateLimiter, monitor Reachability) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ResourceTimeout,
		},
		cache:   cache,
		limiter: limiter,
		monitor: monitor,
		backoff: infra.CalculateBackoff,
	}
}

// FetchTop returns one page of the market-cap ranking starting at the
// given offset, together with the provider's total coin count.
func (c *Client) FetchTop(ctx context.Context, start, limit int) ([]domain.Coin, int, error) {
	key := fmt.Sprintf("tickers_%d_%d", start, limit)
	url := fmt.Sprintf("%s/tickers/?start=%d&limit=%d", c.cfg.BaseURL, start, limit)

	var resp tickersResponse
	if err := c.getJSON(ctx, key, url, &resp); err != nil {
		return nil, 0, err
	}
	return toCoins(resp.Data), resp.Info.CoinsNum, nil
}

// TotalCoins returns the provider's total number of listed coins.
func (c *Client) TotalCoins(ctx context.Context) (int, error) {
	_, total, err := c.FetchTop(ctx, 0, 1)
	return total, err
}

// FetchByIDs returns market data for the given numeric ids. An empty
// input returns an empty result without touching the network.
func (c *Client) FetchByIDs(ctx context.Context, ids []string) ([]domain.Coin, error) {
	if len(ids) == 0 {
		return []domain.Coin{}, nil
	}

	joined := strings.Join(ids, ",")
	key := "ticker_" + joined
	url := fmt.Sprintf("%s/ticker/?id=%s", c.cfg.BaseURL, joined)

	var rows []ticker
	if err := c.getJSON(ctx, key, url, &rows); err != nil {
		return nil, err
	}
	return toCoins(rows), nil
}

// FetchByNameids resolves favorite nameids to coins. The API has no
// batch-by-nameid endpoint, so this scans one bulk top page and filters
// locally; favorites ranked beyond the scan depth are silently missed.
func (c *Client) FetchByNameids(ctx context.Context, nameids []string) ([]domain.Coin, error) {
	if len(nameids) == 0 {
		return []domain.Coin{}, nil
	}

	coins, _, err := c.FetchTop(ctx, 0, c.cfg.FavoritesScanSize)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(nameids))
	for _, id := range nameids {
		wanted[id] = struct{}{}
	}

	matched := make([]domain.Coin, 0, len(nameids))
	for _, coin := range coins {
		if _, ok := wanted[coin.Nameid]; ok {
			matched = append(matched, coin)
		}
	}

	slog.Debug("Resolved favorites by nameid",
		slog.Int("requested", len(nameids)),
		slog.Int("matched", len(matched)))
	return matched, nil
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// getJSON runs the request pipeline and decodes the result into v.
// A cache hit bypasses the reachability and rate-limit checks; a hit
// that fails to decode is evicted and the request falls through to the
// network.
func (c *Client) getJSON(ctx context.Context, key, url string, v any) error {
	if data, ok := c.cache.Get(key); ok {
		if err := json.Unmarshal(data, v); err == nil {
			return nil
		}
		slog.Warn("Evicting corrupted cache entry", slog.String("key", key))
		c.cache.Delete(key)
	}

	data, err := c.do(ctx, url)
	if err != nil {
		return err
	}

	c.cache.Put(key, data)

	if err := json.Unmarshal(data, v); err != nil {
		return apierr.New(apierr.DecodingError, err)
	}
	return nil
}

// do gates on reachability and the local quota, then runs the attempt
// loop. Non-retryable failures abort immediately; retryable ones sleep
// the backoff (or the server's Retry-After) between attempts, and the
// last observed error surfaces once attempts are exhausted.
func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	if !c.monitor.Reachable() {
		return nil, apierr.New(apierr.NetworkUnavailable, nil)
	}

	if retryAfter, ok := c.limiter.Acquire(); !ok {
		slog.Warn("Local rate limit exhausted", slog.Duration("retry_after", retryAfter))
		return nil, apierr.NewRateLimit(retryAfter, false)
	}

	reqID := uuid.NewString()
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			var ae *apierr.Error
			if errors.As(lastErr, &ae) && ae.RetryAfter > 0 {
				delay = ae.RetryAfter
			}
			slog.Info("Retrying request",
				slog.String("request_id", reqID),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, apierr.New(apierr.GenericNetwork, ctx.Err())
			case <-time.After(delay):
			}
		}

		data, err := c.attempt(ctx, url, reqID)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var ae *apierr.Error
		if errors.As(err, &ae) && !ae.Retryable() {
			return nil, err
		}
		slog.Warn("Request attempt failed",
			slog.String("request_id", reqID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}

	return nil, lastErr
}

// attempt performs one HTTP call and classifies its outcome.
func (c *Client) attempt(ctx context.Context, url, reqID string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.New(apierr.GenericNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apierr.New(apierr.GenericNetwork, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apierr.NewRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")), true)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apierr.NewStatus(apierr.Unauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		return nil, apierr.NewStatus(apierr.Forbidden, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, apierr.NewStatus(apierr.ServerError, resp.StatusCode)
	default:
		return nil, apierr.NewStatus(apierr.InvalidRequest, resp.StatusCode)
	}
}

// parseRetryAfter reads a seconds-valued Retry-After header. Zero means
// absent; the retry loop then falls back to its own backoff.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
