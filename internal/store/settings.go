package store

import (
	"log/slog"
	"sync"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
)

// Preference keys mirror the app's historical storage names, so an
// existing database keeps its values across upgrades.
const (
	currencyKey = "currency_preference"
	refreshKey  = "data_refresh_interval"
	sortingKey  = "watchlist_sorting"
)

// SettingsStore holds the three user preferences. Unparseable or
// missing stored values fall back to the defaults (usd, 30s,
// market_cap). Every mutation fires a single settings-changed signal.
type SettingsStore struct {
	mu       sync.Mutex
	kv       KV
	currency domain.Currency
	refresh  domain.RefreshInterval
	sorting  domain.SortKey
	onChange []func()
	logger   *slog.Logger
}

func NewSettingsStore(kv KV, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SettingsStore{kv: kv, logger: logger}

	raw, err := kv.Get(currencyKey)
	if err != nil {
		logger.Warn("failed to load currency preference", slog.Any("error", err))
	}
	s.currency = domain.ParseCurrency(raw)

	raw, err = kv.Get(refreshKey)
	if err != nil {
		logger.Warn("failed to load refresh preference", slog.Any("error", err))
	}
	s.refresh = domain.ParseRefreshInterval(raw)

	raw, err = kv.Get(sortingKey)
	if err != nil {
		logger.Warn("failed to load sorting preference", slog.Any("error", err))
	}
	s.sorting = domain.ParseSortKey(raw)

	return s
}

// OnChange registers a callback invoked after any preference changes.
func (s *SettingsStore) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *SettingsStore) Currency() domain.Currency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currency
}

func (s *SettingsStore) SetCurrency(c domain.Currency) {
	s.mu.Lock()
	if s.currency == c {
		s.mu.Unlock()
		return
	}
	s.currency = c
	s.persistLocked(currencyKey, string(c))
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()
	notify(subs)
}

func (s *SettingsStore) RefreshInterval() domain.RefreshInterval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

func (s *SettingsStore) SetRefreshInterval(r domain.RefreshInterval) {
	s.mu.Lock()
	if s.refresh == r {
		s.mu.Unlock()
		return
	}
	s.refresh = r
	s.persistLocked(refreshKey, string(r))
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()
	notify(subs)
}

func (s *SettingsStore) Sorting() domain.SortKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorting
}

func (s *SettingsStore) SetSorting(k domain.SortKey) {
	s.mu.Lock()
	if s.sorting == k {
		s.mu.Unlock()
		return
	}
	s.sorting = k
	s.persistLocked(sortingKey, string(k))
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()
	notify(subs)
}

// ResetToDefaults restores usd / 30s / market_cap and fires a single
// change signal if anything actually changed.
func (s *SettingsStore) ResetToDefaults() {
	s.mu.Lock()
	changed := false
	if s.currency != domain.CurrencyUSD {
		s.currency = domain.CurrencyUSD
		s.persistLocked(currencyKey, string(domain.CurrencyUSD))
		changed = true
	}
	if s.refresh != domain.RefreshThirtySeconds {
		s.refresh = domain.RefreshThirtySeconds
		s.persistLocked(refreshKey, string(domain.RefreshThirtySeconds))
		changed = true
	}
	if s.sorting != domain.SortMarketCap {
		s.sorting = domain.SortMarketCap
		s.persistLocked(sortingKey, string(domain.SortMarketCap))
		changed = true
	}
	var subs []func()
	if changed {
		subs = s.snapshotSubsLocked()
	}
	s.mu.Unlock()
	notify(subs)
}

func (s *SettingsStore) persistLocked(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		s.logger.Error("failed to persist preference",
			slog.String("key", key), slog.Any("error", err))
	}
}

func (s *SettingsStore) snapshotSubsLocked() []func() {
	subs := make([]func(), len(s.onChange))
	copy(subs, s.onChange)
	return subs
}
