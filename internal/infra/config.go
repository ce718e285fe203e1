package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the application. Values load from a
// YAML file and may be overridden through environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		CoinLore struct {
			BaseURL            string `yaml:"base_url"`
			UserAgent          string `yaml:"user_agent"`
			RequestsPerMinute  int    `yaml:"requests_per_minute"`
			MaxRetries         int    `yaml:"max_retries"`
			RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
			ResourceTimeoutSec int    `yaml:"resource_timeout_sec"`
		} `yaml:"coinlore"`
		ExchangeRate struct {
			PrimaryURL  string `yaml:"primary_url"`
			FallbackURL string `yaml:"fallback_url"`
		} `yaml:"exchange_rate"`
	} `yaml:"api"`

	Cache struct {
		MaxEntries int `yaml:"max_entries"`
		MaxBytes   int `yaml:"max_bytes"`
	} `yaml:"cache"`

	List struct {
		ItemsPerPage      int `yaml:"items_per_page"`
		SearchDebounceMS  int `yaml:"search_debounce_ms"`
		MinSearchQueryLen int `yaml:"min_search_query_len"`
		MaxSearchResults  int `yaml:"max_search_results"`
		FavoritesScanSize int `yaml:"favorites_scan_size"`
	} `yaml:"list"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in configuration, matching the free
// tiers of the upstream services.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "crypto-list-watch"
	cfg.App.Version = "1.0.0"

	cfg.API.CoinLore.BaseURL = "https://api.coinlore.net/api"
	cfg.API.CoinLore.UserAgent = "CryptoListWatch/1.0"
	cfg.API.CoinLore.RequestsPerMinute = 25
	cfg.API.CoinLore.MaxRetries = 3
	cfg.API.CoinLore.RequestTimeoutSec = 30
	cfg.API.CoinLore.ResourceTimeoutSec = 120

	cfg.API.ExchangeRate.PrimaryURL = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json"
	cfg.API.ExchangeRate.FallbackURL = "https://latest.currency-api.pages.dev/v1/currencies/usd.json"

	cfg.Cache.MaxEntries = 100
	cfg.Cache.MaxBytes = 10 * 1024 * 1024

	cfg.List.ItemsPerPage = 50
	cfg.List.SearchDebounceMS = 300
	cfg.List.MinSearchQueryLen = 2
	cfg.List.MaxSearchResults = 50
	cfg.List.FavoritesScanSize = 1000

	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads and parses the configuration file. A missing file is
// not an error: the defaults stand, with env overrides still applied.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.CoinLore.BaseURL, "http://") && !strings.HasPrefix(c.API.CoinLore.BaseURL, "https://") {
		return fmt.Errorf("invalid CoinLore base URL: %s", c.API.CoinLore.BaseURL)
	}
	if c.API.CoinLore.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive")
	}
	if c.API.CoinLore.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.Cache.MaxEntries <= 0 || c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache bounds must be positive")
	}
	if c.List.ItemsPerPage <= 0 {
		return fmt.Errorf("items per page must be positive")
	}
	return nil
}

// RequestTimeout bounds a single HTTP attempt.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.CoinLore.RequestTimeoutSec) * time.Second
}

// ResourceTimeout bounds a full transfer including the body.
func (c *Config) ResourceTimeout() time.Duration {
	return time.Duration(c.API.CoinLore.ResourceTimeoutSec) * time.Second
}

// SearchDebounce is how long typing must pause before a search fires.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.List.SearchDebounceMS) * time.Millisecond
}

// overrideWithEnv applies environment variables on top of the file values.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("CRYPTOWATCH_COINLORE_URL"); v != "" {
		cfg.API.CoinLore.BaseURL = v
	}
	if v := os.Getenv("CRYPTOWATCH_EXCHANGE_RATE_URL"); v != "" {
		cfg.API.ExchangeRate.PrimaryURL = v
	}
	if v := os.Getenv("CRYPTOWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
