package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig with missing file: %v", err)
	}
	if cfg.API.CoinLore.RequestsPerMinute != 25 {
		t.Errorf("default requests_per_minute = %d, want 25", cfg.API.CoinLore.RequestsPerMinute)
	}
	if cfg.List.ItemsPerPage != 50 {
		t.Errorf("default items_per_page = %d, want 50", cfg.List.ItemsPerPage)
	}
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
api:
  coinlore:
    base_url: "https://example.test/api"
    requests_per_minute: 10
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CRYPTOWATCH_COINLORE_URL", "https://override.test/api")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.CoinLore.BaseURL != "https://override.test/api" {
		t.Errorf("env override lost: base_url = %s", cfg.API.CoinLore.BaseURL)
	}
	if cfg.API.CoinLore.RequestsPerMinute != 10 {
		t.Errorf("file value lost: requests_per_minute = %d", cfg.API.CoinLore.RequestsPerMinute)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %s, want debug", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.CoinLore.BaseURL = "not-a-url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad base URL")
	}

	cfg = DefaultConfig()
	cfg.Cache.MaxBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero cache bound")
	}
}
