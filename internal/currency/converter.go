package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
)

// ratesResponse is the currency-api payload: a date plus a map of
// lowercase currency codes to units-per-USD rates.
type ratesResponse struct {
	Date string             `json:"date"`
	USD  map[string]float64 `json:"usd"`
}

// defaultRates seeds the table so conversion works before the first
// successful refresh. Values are units per 1 USD.
var defaultRates = map[domain.Currency]decimal.Decimal{
	domain.CurrencyEUR: decimal.NewFromFloat(0.85),
	domain.CurrencyGBP: decimal.NewFromFloat(0.73),
	domain.CurrencyJPY: decimal.NewFromFloat(110.0),
	domain.CurrencyCAD: decimal.NewFromFloat(1.25),
	domain.CurrencyAUD: decimal.NewFromFloat(1.35),
	domain.CurrencyCHF: decimal.NewFromFloat(0.92),
	domain.CurrencyCNY: decimal.NewFromFloat(6.45),
	domain.CurrencyNOK: decimal.NewFromFloat(8.5),
	domain.CurrencySEK: decimal.NewFromFloat(8.8),
	domain.CurrencyDKK: decimal.NewFromFloat(6.3),
	domain.CurrencyPLN: decimal.NewFromFloat(3.9),
	domain.CurrencyCZK: decimal.NewFromFloat(21.5),
	domain.CurrencyHUF: decimal.NewFromFloat(295.0),
	domain.CurrencyRON: decimal.NewFromFloat(4.2),
	domain.CurrencyBGN: decimal.NewFromFloat(1.66),
	domain.CurrencyHRK: decimal.NewFromFloat(6.4),
	domain.CurrencyRSD: decimal.NewFromFloat(100.0),
	domain.CurrencyISK: decimal.NewFromFloat(125.0),
	domain.CurrencyTRY: decimal.NewFromFloat(8.5),
	domain.CurrencyRUB: decimal.NewFromFloat(75.0),
	domain.CurrencyUAH: decimal.NewFromFloat(27.0),
}

// referencePrices are approximate USD prices used to express a USD
// amount in a crypto unit. Display-grade only, never refreshed.
var referencePrices = map[domain.Currency]decimal.Decimal{
	domain.CurrencyBTC: decimal.NewFromFloat(45000.0),
	domain.CurrencyETH: decimal.NewFromFloat(3000.0),
	domain.CurrencyBNB: decimal.NewFromFloat(300.0),
	domain.CurrencyADA: decimal.NewFromFloat(0.5),
	domain.CurrencyDOT: decimal.NewFromFloat(7.0),
	domain.CurrencySOL: decimal.NewFromFloat(100.0),
}

// Converter turns USD amounts into a selected display currency. Fiat
// rates come from the currency-api CDN and are cached for an hour;
// a refresh that fails on both mirrors keeps the previous table.
type Converter struct {
	mu          sync.RWMutex
	rates       map[domain.Currency]decimal.Decimal
	lastRefresh time.Time

	ttl         time.Duration
	primaryURL  string
	fallbackURL string
	httpClient  *http.Client
	logger      *slog.Logger

	now func() time.Time
}

// Config carries the refresh endpoints. Zero values fall back to the
// public jsDelivr mirrors and a 1 hour TTL.
type Config struct {
	PrimaryURL  string
	FallbackURL string
	TTL         time.Duration
	Timeout     time.Duration
}

const (
	defaultPrimaryURL  = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json"
	defaultFallbackURL = "https://latest.currency-api.pages.dev/v1/currencies/usd.json"
)

func NewConverter(cfg Config, logger *slog.Logger) *Converter {
	if cfg.PrimaryURL == "" {
		cfg.PrimaryURL = defaultPrimaryURL
	}
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = defaultFallbackURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	rates := make(map[domain.Currency]decimal.Decimal, len(defaultRates))
	for c, r := range defaultRates {
		rates[c] = r
	}

	return &Converter{
		rates:       rates,
		ttl:         cfg.TTL,
		primaryURL:  cfg.PrimaryURL,
		fallbackURL: cfg.FallbackURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		now:         time.Now,
	}
}

// Convert expresses a USD amount in the target currency. USD is the
// identity; crypto targets divide by the static reference price; fiat
// targets multiply by the cached rate. Unknown targets return the
// amount unchanged.
func (c *Converter) Convert(amountUSD float64, target domain.Currency) float64 {
	if target == domain.CurrencyUSD {
		return amountUSD
	}
	amount := decimal.NewFromFloat(amountUSD)

	if ref, ok := referencePrices[target]; ok {
		if ref.IsZero() {
			return amountUSD
		}
		v, _ := amount.Div(ref).Float64()
		return v
	}

	c.mu.RLock()
	rate, ok := c.rates[target]
	c.mu.RUnlock()
	if !ok {
		return amountUSD
	}
	v, _ := amount.Mul(rate).Float64()
	return v
}

// Rate returns the current units-per-USD rate for the target, 1 for
// USD and unknown currencies, and 1/reference for crypto targets.
func (c *Converter) Rate(target domain.Currency) float64 {
	if target == domain.CurrencyUSD {
		return 1
	}
	if ref, ok := referencePrices[target]; ok && !ref.IsZero() {
		v, _ := decimal.NewFromInt(1).Div(ref).Float64()
		return v
	}
	c.mu.RLock()
	rate, ok := c.rates[target]
	c.mu.RUnlock()
	if !ok {
		return 1
	}
	v, _ := rate.Float64()
	return v
}

// RefreshRates updates the fiat table from the primary endpoint,
// falling back to the mirror. Within the TTL it is a no-op. A refresh
// that fails on both endpoints logs and keeps the previous table so
// conversion keeps working.
func (c *Converter) RefreshRates(ctx context.Context) {
	c.mu.RLock()
	fresh := c.now().Sub(c.lastRefresh) < c.ttl && !c.lastRefresh.IsZero()
	c.mu.RUnlock()
	if fresh {
		return
	}

	fetched, err := c.fetch(ctx, c.primaryURL)
	if err != nil {
		c.logger.Warn("primary exchange rate fetch failed, trying mirror",
			slog.Any("error", err))
		fetched, err = c.fetch(ctx, c.fallbackURL)
	}
	if err != nil {
		c.logger.Warn("exchange rate refresh failed, keeping cached rates",
			slog.Any("error", err))
		return
	}

	c.mu.Lock()
	for cur, rate := range fetched {
		c.rates[cur] = rate
	}
	c.lastRefresh = c.now()
	c.mu.Unlock()

	c.logger.Info("exchange rates refreshed", slog.Int("currencies", len(fetched)))
}

func (c *Converter) fetch(ctx context.Context, url string) (map[domain.Currency]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading rates body: %w", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding rates body: %w", err)
	}
	if len(parsed.USD) == 0 {
		return nil, fmt.Errorf("rates body carried no usd table")
	}

	out := make(map[domain.Currency]decimal.Decimal)
	for cur := range defaultRates {
		if v, ok := parsed.USD[string(cur)]; ok && v > 0 {
			out[cur] = decimal.NewFromFloat(v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rates body matched no supported currency")
	}
	return out, nil
}
