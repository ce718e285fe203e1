package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/apierr"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/store"
)

// PricingAPI is the market-data surface the controller drives.
type PricingAPI interface {
	FetchTop(ctx context.Context, start, limit int) ([]domain.Coin, int, error)
	FetchByNameids(ctx context.Context, nameids []string) ([]domain.Coin, error)
	Search(ctx context.Context, query string) ([]domain.Coin, error)
}

// RateRefresher keeps the currency conversion table warm.
type RateRefresher interface {
	RefreshRates(ctx context.Context)
}

// Tab selects which list the controller treats as active.
type Tab int

const (
	TabTop Tab = iota
	TabFavorites
)

// Snapshot is the published view state. Slices are copies and safe to
// retain.
type Snapshot struct {
	Tab           Tab
	Coins         []domain.Coin
	Favorites     []domain.Coin
	SearchResults []domain.Coin
	IsLoading     bool
	IsLoadingMore bool
	HasMore       bool
	Err           error
}

// Config tunes the controller. Zero values fall back to 50-item pages,
// a 300ms search debounce and a 2-character minimum query.
type Config struct {
	ItemsPerPage   int
	SearchDebounce time.Duration
	SearchMinLen   int

	now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.ItemsPerPage <= 0 {
		c.ItemsPerPage = 50
	}
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = 300 * time.Millisecond
	}
	if c.SearchMinLen <= 0 {
		c.SearchMinLen = 2
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// minValidity is the floor on data staleness so even the live tier
// cannot refetch in a tight loop.
const minValidity = 500 * time.Millisecond

// Controller owns the paginated top list, the favorites list and the
// debounced search, and republishes a Snapshot after every state
// change. All mutation is serialized behind one mutex.
type Controller struct {
	mu sync.Mutex

	api       PricingAPI
	rates     RateRefresher
	favorites *store.FavoritesStore
	settings  *store.SettingsStore
	cfg       Config
	logger    *slog.Logger

	tab           Tab
	coins         []domain.Coin
	total         int
	page          int
	hasMore       bool
	isLoading     bool
	isLoadingMore bool
	lastTopLoad   time.Time

	favCoins    []domain.Coin
	favLoaded   map[string]struct{}
	lastFavLoad time.Time

	searchResults []domain.Coin
	searchGen     atomic.Int64

	lastErr error

	subs []func(Snapshot)

	settingsChanged chan struct{}
	wg              sync.WaitGroup
}

func New(api PricingAPI, rates RateRefresher, favorites *store.FavoritesStore,
	settings *store.SettingsStore, cfg Config, logger *slog.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		api:             api,
		rates:           rates,
		favorites:       favorites,
		settings:        settings,
		cfg:             cfg,
		logger:          logger,
		favLoaded:       make(map[string]struct{}),
		settingsChanged: make(chan struct{}, 1),
	}
	settings.OnChange(func() {
		select {
		case c.settingsChanged <- struct{}{}:
		default:
		}
	})
	return c
}

// Subscribe registers a snapshot listener. It is invoked after every
// published state change, on the mutating goroutine.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Snapshot returns a copy of the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Tab:           c.tab,
		Coins:         append([]domain.Coin(nil), c.coins...),
		Favorites:     append([]domain.Coin(nil), c.favCoins...),
		SearchResults: append([]domain.Coin(nil), c.searchResults...),
		IsLoading:     c.isLoading,
		IsLoadingMore: c.isLoadingMore,
		HasMore:       c.hasMore,
		Err:           c.lastErr,
	}
}

func (c *Controller) publishLocked() {
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), len(c.subs))
	copy(subs, c.subs)
	// Listeners run outside the lock so they can call back in.
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	c.mu.Lock()
}

// LoadTop fetches the first page of the market list, replacing any
// previously loaded pages. Concurrent calls while a load is in flight
// are ignored.
func (c *Controller) LoadTop(ctx context.Context) error {
	c.mu.Lock()
	if c.isLoading {
		c.mu.Unlock()
		return nil
	}
	c.isLoading = true
	c.lastErr = nil
	limit := c.cfg.ItemsPerPage
	c.publishLocked()
	c.mu.Unlock()

	coins, total, err := c.api.FetchTop(ctx, 0, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.isLoading = false
	if err != nil {
		// The initial load surfaces every failure class so the view
		// can show the matching message with a retry affordance.
		c.lastErr = err
		c.logger.Warn("top list load failed", slog.Any("error", err))
		c.publishLocked()
		return err
	}
	c.coins = coins
	c.total = total
	c.page = 0
	c.hasMore = len(coins) == limit && limit < total
	c.lastTopLoad = c.cfg.now()
	c.publishLocked()
	return nil
}

// LoadMore appends the next page. The page cursor advances before the
// request so a concurrent caller sees the claim; on failure only the
// cursor is reverted, so the same offset is retried next time.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore || c.isLoading || c.isLoadingMore {
		c.mu.Unlock()
		return nil
	}
	c.isLoadingMore = true
	c.page++
	limit := c.cfg.ItemsPerPage
	offset := c.page * limit
	c.publishLocked()
	c.mu.Unlock()

	coins, total, err := c.api.FetchTop(ctx, offset, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.isLoadingMore = false
	if err != nil {
		c.page--
		c.recordErrorLocked("page load failed", err)
		c.publishLocked()
		return err
	}
	c.coins = append(c.coins, coins...)
	c.total = total
	c.hasMore = len(coins) == limit && offset+limit < total
	c.publishLocked()
	return nil
}

// LoadFavorites fetches market data for the favorite set. An empty set
// clears the list without touching the network.
func (c *Controller) LoadFavorites(ctx context.Context) error {
	nameids := c.favorites.Nameids()

	c.mu.Lock()
	if len(nameids) == 0 {
		c.favCoins = nil
		c.favLoaded = make(map[string]struct{})
		c.lastFavLoad = c.cfg.now()
		c.lastErr = nil
		c.publishLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ids := make([]string, 0, len(nameids))
	for id := range nameids {
		ids = append(ids, id)
	}
	coins, err := c.api.FetchByNameids(ctx, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// Only a dead network is worth telling the user about here;
		// the previous favorites stay on screen otherwise.
		if apierr.IsKind(err, apierr.NetworkUnavailable) {
			c.recordErrorLocked("favorites load failed", err)
		} else {
			c.logger.Warn("favorites load failed", slog.Any("error", err))
		}
		c.publishLocked()
		return err
	}
	domain.SortCoins(coins, c.settings.Sorting())
	c.favCoins = coins
	c.favLoaded = nameids
	c.lastFavLoad = c.cfg.now()
	c.lastErr = nil
	c.publishLocked()
	return nil
}

// Search schedules a debounced search. Queries shorter than the
// minimum clear the results. A newer query invalidates any in-flight
// one; stale results are discarded.
func (c *Controller) Search(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	gen := c.searchGen.Add(1)

	if len(query) < c.cfg.SearchMinLen {
		c.mu.Lock()
		c.searchResults = nil
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		timer := time.NewTimer(c.cfg.SearchDebounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if c.searchGen.Load() != gen {
			return
		}

		results, err := c.api.Search(ctx, query)
		if c.searchGen.Load() != gen {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			// Degrade to empty results rather than keeping a stale list
			// for a query that never completed.
			c.searchResults = nil
			if apierr.IsKind(err, apierr.RateLimitExceeded) {
				c.recordErrorLocked("search failed", err)
			} else {
				c.logger.Warn("search failed", slog.String("query", query), slog.Any("error", err))
			}
			c.publishLocked()
			return
		}
		c.searchResults = results
		c.publishLocked()
	}()
}

// ClearSearch drops results and cancels any pending search.
func (c *Controller) ClearSearch() {
	c.searchGen.Add(1)
	c.mu.Lock()
	c.searchResults = nil
	c.publishLocked()
	c.mu.Unlock()
}

// SelectTab switches the active list.
func (c *Controller) SelectTab(tab Tab) {
	c.mu.Lock()
	c.tab = tab
	c.publishLocked()
	c.mu.Unlock()
}

// ToggleFavorite flips a coin's favorite state and returns the new
// membership.
func (c *Controller) ToggleFavorite(nameid string) bool {
	return c.favorites.Toggle(nameid)
}

func (c *Controller) IsFavorite(nameid string) bool {
	return c.favorites.IsFavorite(nameid)
}

// ApplySortingToFavorites re-sorts the loaded favorites under the
// current sort preference without a network round trip.
func (c *Controller) ApplySortingToFavorites() {
	c.mu.Lock()
	domain.SortCoins(c.favCoins, c.settings.Sorting())
	c.publishLocked()
	c.mu.Unlock()
}

// validity is how long loaded data stays fresh: half the refresh
// interval, floored at 500ms. Manual mode uses the 30s default.
func (c *Controller) validity() time.Duration {
	d, ok := c.settings.RefreshInterval().Duration()
	if !ok {
		d = 30 * time.Second
	}
	v := d / 2
	if v < minValidity {
		v = minValidity
	}
	return v
}

// RefreshIfNeeded reloads the active tab only when its data is stale
// or, for favorites, when the favorite set changed since the load.
func (c *Controller) RefreshIfNeeded(ctx context.Context) error {
	switch c.activeTab() {
	case TabFavorites:
		if c.favoritesDirty() || c.stale(c.lastFav()) {
			return c.LoadFavorites(ctx)
		}
	default:
		c.mu.Lock()
		empty := len(c.coins) == 0
		loadedAt := c.lastTopLoad
		c.mu.Unlock()
		if empty || c.stale(loadedAt) {
			return c.LoadTop(ctx)
		}
	}
	return nil
}

// ForceRefresh reloads the active tab unconditionally.
func (c *Controller) ForceRefresh(ctx context.Context) error {
	if c.activeTab() == TabFavorites {
		return c.LoadFavorites(ctx)
	}
	return c.LoadTop(ctx)
}

func (c *Controller) activeTab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

func (c *Controller) stale(loadedAt time.Time) bool {
	if loadedAt.IsZero() {
		return true
	}
	return c.cfg.now().Sub(loadedAt) >= c.validity()
}

func (c *Controller) lastFav() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFavLoad
}

// favoritesDirty reports whether the persisted favorite set no longer
// matches what the favorites list was loaded from.
func (c *Controller) favoritesDirty() bool {
	current := c.favorites.Nameids()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(current) != len(c.favLoaded) {
		return true
	}
	for id := range current {
		if _, ok := c.favLoaded[id]; !ok {
			return true
		}
	}
	return false
}

// Start runs the auto-refresh loop until ctx is cancelled. The live
// tier forces a reload every tick; slower tiers go through the
// staleness check. A settings change re-arms the timer, refreshes the
// conversion rates and force-reloads the active tab.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.rates.RefreshRates(ctx)

		for {
			interval, ok := c.settings.RefreshInterval().Duration()
			if !ok {
				// Manual mode: no timer, wait for a settings change.
				select {
				case <-ctx.Done():
					return
				case <-c.settingsChanged:
					c.onSettingsChanged(ctx)
					continue
				}
			}

			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-c.settingsChanged:
				timer.Stop()
				c.onSettingsChanged(ctx)
			case <-timer.C:
				if interval <= time.Second {
					if err := c.ForceRefresh(ctx); err != nil {
						c.logger.Debug("auto refresh failed", slog.Any("error", err))
					}
				} else if err := c.RefreshIfNeeded(ctx); err != nil {
					c.logger.Debug("auto refresh failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// onSettingsChanged refreshes the conversion rates, always reloads
// favorites (the sort preference may have changed) and reloads the top
// list when that tab is the active one.
func (c *Controller) onSettingsChanged(ctx context.Context) {
	c.rates.RefreshRates(ctx)
	if err := c.LoadFavorites(ctx); err != nil {
		c.logger.Debug("favorites reload after settings change failed", slog.Any("error", err))
	}
	if c.activeTab() == TabTop {
		if err := c.LoadTop(ctx); err != nil {
			c.logger.Debug("top reload after settings change failed", slog.Any("error", err))
		}
	}
}

// Wait blocks until background work spawned by the controller is done.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// recordErrorLocked applies the surfacing policy: connectivity and
// rate-limit problems reach the snapshot, everything else only logs.
func (c *Controller) recordErrorLocked(msg string, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apierr.NetworkUnavailable, apierr.RateLimitExceeded:
			c.lastErr = ae
		default:
		}
	}
	c.logger.Warn(msg, slog.Any("error", err))
}
