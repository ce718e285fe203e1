package watchlist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/apierr"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/store"
)

// fakeAPI serves a synthetic ranked market of `universe` coins and
// records every call.
type fakeAPI struct {
	mu           sync.Mutex
	universe     int
	fetchTopLog  []int // requested offsets
	nameidsLog   [][]string
	searchLog    []string
	failNext     error
	searchResult []domain.Coin
	searchErr    error
}

func (f *fakeAPI) coin(rank int) domain.Coin {
	price := float64(1000 - rank)
	cap := float64((1000 - rank) * 1000)
	return domain.Coin{
		ID:            fmt.Sprintf("%d", rank),
		Nameid:        fmt.Sprintf("coin-%d", rank),
		Symbol:        fmt.Sprintf("C%d", rank),
		Name:          fmt.Sprintf("Coin %d", rank),
		PriceUSD:      price,
		MarketCapUSD:  &cap,
		MarketCapRank: &rank,
	}
}

func (f *fakeAPI) FetchTop(_ context.Context, start, limit int) ([]domain.Coin, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchTopLog = append(f.fetchTopLog, start)
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, 0, err
	}
	var coins []domain.Coin
	for i := start; i < start+limit && i < f.universe; i++ {
		coins = append(coins, f.coin(i+1))
	}
	return coins, f.universe, nil
}

func (f *fakeAPI) FetchByNameids(_ context.Context, nameids []string) ([]domain.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameidsLog = append(f.nameidsLog, nameids)
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	var coins []domain.Coin
	for i, id := range nameids {
		c := f.coin(i + 1)
		c.Nameid = id
		coins = append(coins, c)
	}
	return coins, nil
}

func (f *fakeAPI) Search(_ context.Context, query string) ([]domain.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLog = append(f.searchLog, query)
	return f.searchResult, f.searchErr
}

func (f *fakeAPI) nameidsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nameidsLog)
}

func (f *fakeAPI) topCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetchTopLog...)
}

func (f *fakeAPI) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchLog...)
}

type fakeRates struct{ calls int }

func (r *fakeRates) RefreshRates(context.Context) { r.calls++ }

func newTestController(universe int) (*Controller, *fakeAPI, *store.FavoritesStore, *store.SettingsStore, *time.Time) {
	api := &fakeAPI{universe: universe}
	favs := store.NewFavoritesStore(store.NewMemoryKV(), nil)
	settings := store.NewSettingsStore(store.NewMemoryKV(), nil)
	now := time.Now()
	cfg := Config{
		ItemsPerPage:   50,
		SearchDebounce: 5 * time.Millisecond,
		now:            func() time.Time { return now },
	}
	c := New(api, &fakeRates{}, favs, settings, cfg, nil)
	return c, api, favs, settings, &now
}

func TestLoadTopAndLoadMore_Pagination(t *testing.T) {
	c, api, _, _, _ := newTestController(120)
	ctx := context.Background()

	if err := c.LoadTop(ctx); err != nil {
		t.Fatalf("LoadTop: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Coins) != 50 || !snap.HasMore {
		t.Fatalf("after LoadTop: %d coins, hasMore=%v; want 50, true", len(snap.Coins), snap.HasMore)
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	snap = c.Snapshot()
	if len(snap.Coins) != 100 || !snap.HasMore {
		t.Fatalf("after first LoadMore: %d coins, hasMore=%v; want 100, true", len(snap.Coins), snap.HasMore)
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("second LoadMore: %v", err)
	}
	snap = c.Snapshot()
	if len(snap.Coins) != 120 || snap.HasMore {
		t.Fatalf("after second LoadMore: %d coins, hasMore=%v; want 120, false", len(snap.Coins), snap.HasMore)
	}

	// Exhausted list: further calls never hit the network.
	c.LoadMore(ctx)
	if got := api.topCalls(); len(got) != 3 {
		t.Errorf("FetchTop offsets = %v, want exactly [0 50 100]", got)
	}
}

func TestLoadTop_ExactMultipleStopsPaging(t *testing.T) {
	c, api, _, _, _ := newTestController(50)
	ctx := context.Background()

	if err := c.LoadTop(ctx); err != nil {
		t.Fatalf("LoadTop: %v", err)
	}
	if snap := c.Snapshot(); snap.HasMore {
		t.Error("a full page covering the whole universe must not report more")
	}
	c.LoadMore(ctx)
	if got := api.topCalls(); len(got) != 1 {
		t.Errorf("FetchTop called %d times, want 1", len(got))
	}
}

func TestLoadMore_FailureRevertsCursorAndRetriesSameOffset(t *testing.T) {
	c, api, _, _, _ := newTestController(200)
	ctx := context.Background()

	if err := c.LoadTop(ctx); err != nil {
		t.Fatalf("LoadTop: %v", err)
	}

	api.mu.Lock()
	api.failNext = apierr.New(apierr.ServerError, nil)
	api.mu.Unlock()
	if err := c.LoadMore(ctx); err == nil {
		t.Fatal("expected LoadMore failure")
	}
	if snap := c.Snapshot(); !snap.HasMore {
		t.Error("a failed page must not close off pagination")
	}
	if snap := c.Snapshot(); len(snap.Coins) != 50 {
		t.Errorf("failed page must not append coins, have %d", len(snap.Coins))
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("retry LoadMore: %v", err)
	}
	got := api.topCalls()
	if len(got) != 3 || got[1] != 50 || got[2] != 50 {
		t.Errorf("FetchTop offsets = %v, want [0 50 50] (same offset retried)", got)
	}
}

func TestRefreshIfNeeded_Staleness(t *testing.T) {
	c, api, _, _, now := newTestController(100)
	ctx := context.Background()

	if err := c.RefreshIfNeeded(ctx); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	// Fresh data (validity is 15s for the default 30s tier): no call.
	*now = now.Add(10 * time.Second)
	c.RefreshIfNeeded(ctx)
	if got := api.topCalls(); len(got) != 1 {
		t.Fatalf("FetchTop called %d times, want 1 (data still fresh)", len(got))
	}

	*now = now.Add(6 * time.Second)
	c.RefreshIfNeeded(ctx)
	if got := api.topCalls(); len(got) != 2 {
		t.Errorf("FetchTop called %d times, want 2 (data went stale)", len(got))
	}
}

func TestForceRefresh_IgnoresFreshness(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	ctx := context.Background()

	c.ForceRefresh(ctx)
	c.ForceRefresh(ctx)
	if got := api.topCalls(); len(got) != 2 {
		t.Errorf("FetchTop called %d times, want 2", len(got))
	}
}

func TestLoadFavorites_EmptySetSkipsNetwork(t *testing.T) {
	c, api, _, _, _ := newTestController(100)

	if err := c.LoadFavorites(context.Background()); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}
	api.mu.Lock()
	calls := len(api.nameidsLog)
	api.mu.Unlock()
	if calls != 0 {
		t.Error("empty favorite set must not reach the network")
	}
	if snap := c.Snapshot(); len(snap.Favorites) != 0 {
		t.Error("favorites should be empty")
	}
}

func TestRefreshIfNeeded_FavoriteSetMismatchForcesReload(t *testing.T) {
	c, api, favs, _, _ := newTestController(100)
	ctx := context.Background()
	c.SelectTab(TabFavorites)

	favs.Add("bitcoin")
	if err := c.LoadFavorites(ctx); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}

	// Data is fresh, set unchanged: no reload.
	c.RefreshIfNeeded(ctx)
	api.mu.Lock()
	calls := len(api.nameidsLog)
	api.mu.Unlock()
	if calls != 1 {
		t.Fatalf("FetchByNameids called %d times, want 1", calls)
	}

	// Toggling a favorite invalidates the loaded list immediately.
	favs.Add("ethereum")
	c.RefreshIfNeeded(ctx)
	api.mu.Lock()
	calls = len(api.nameidsLog)
	api.mu.Unlock()
	if calls != 2 {
		t.Errorf("FetchByNameids called %d times, want 2 (set changed)", calls)
	}
}

func TestSearch_DebounceCollapsesKeystrokes(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	api.searchResult = []domain.Coin{{Nameid: "bitcoin", Name: "Bitcoin"}}
	ctx := context.Background()

	c.Search(ctx, "b") // below minimum, clears
	c.Search(ctx, "bi")
	c.Search(ctx, "bit")

	time.Sleep(100 * time.Millisecond)
	c.Wait()

	if got := api.searches(); len(got) != 1 || got[0] != "bit" {
		t.Errorf("searches = %v, want exactly [bit]", got)
	}
	if snap := c.Snapshot(); len(snap.SearchResults) != 1 {
		t.Errorf("search results = %d, want 1", len(snap.SearchResults))
	}
}

func TestClearSearch_CancelsPending(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	ctx := context.Background()

	c.Search(ctx, "bitcoin")
	c.ClearSearch()

	time.Sleep(100 * time.Millisecond)
	c.Wait()

	if got := api.searches(); len(got) != 0 {
		t.Errorf("searches = %v, want none (cleared before debounce)", got)
	}
	if snap := c.Snapshot(); len(snap.SearchResults) != 0 {
		t.Error("results should be cleared")
	}
}

func TestErrorSurfacingPolicy(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	ctx := context.Background()

	api.mu.Lock()
	api.failNext = apierr.New(apierr.NetworkUnavailable, nil)
	api.mu.Unlock()
	c.LoadTop(ctx)
	if snap := c.Snapshot(); snap.Err == nil {
		t.Error("network-unavailable should surface in the snapshot")
	}

	// A successful load clears it; a server error stays log-only.
	if err := c.LoadTop(ctx); err != nil {
		t.Fatalf("recovery LoadTop: %v", err)
	}
	api.mu.Lock()
	api.failNext = apierr.NewStatus(apierr.ServerError, 503)
	api.mu.Unlock()
	c.LoadMore(ctx)
	if snap := c.Snapshot(); snap.Err != nil {
		t.Errorf("server error should not surface, got %v", snap.Err)
	}
}

func TestApplySortingToFavorites_LocalOnly(t *testing.T) {
	c, api, favs, settings, _ := newTestController(100)
	ctx := context.Background()

	favs.Add("aaa")
	favs.Add("zzz")
	if err := c.LoadFavorites(ctx); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}
	api.mu.Lock()
	before := len(api.nameidsLog)
	api.mu.Unlock()

	settings.SetSorting(domain.SortAlphabetical)
	c.ApplySortingToFavorites()

	snap := c.Snapshot()
	if len(snap.Favorites) != 2 {
		t.Fatalf("favorites = %d, want 2", len(snap.Favorites))
	}
	api.mu.Lock()
	after := len(api.nameidsLog)
	api.mu.Unlock()
	if after != before {
		t.Error("re-sorting must not hit the network")
	}
}

func TestSubscribe_PublishesSnapshots(t *testing.T) {
	c, _, _, _, _ := newTestController(100)

	var mu sync.Mutex
	var snaps []Snapshot
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	c.LoadTop(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) < 2 {
		t.Fatalf("published %d snapshots, want loading + loaded", len(snaps))
	}
	if !snaps[0].IsLoading {
		t.Error("first snapshot should carry the loading flag")
	}
	last := snaps[len(snaps)-1]
	if last.IsLoading || len(last.Coins) != 50 {
		t.Errorf("final snapshot: loading=%v coins=%d, want false, 50", last.IsLoading, len(last.Coins))
	}
}

func TestLoadTop_SurfacesEveryFailureClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", apierr.NewStatus(apierr.ServerError, 503)},
		{"decoding error", apierr.New(apierr.DecodingError, nil)},
		{"transport error", apierr.New(apierr.GenericNetwork, nil)},
		{"network unavailable", apierr.New(apierr.NetworkUnavailable, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, api, _, _, _ := newTestController(100)
			api.mu.Lock()
			api.failNext = tt.err
			api.mu.Unlock()

			if err := c.LoadTop(context.Background()); err == nil {
				t.Fatal("expected LoadTop failure")
			}
			if snap := c.Snapshot(); snap.Err == nil {
				t.Error("initial-load failure must surface in the snapshot")
			}
		})
	}
}

func TestSettingsChange_ReloadsFavoritesWhileTopTabActive(t *testing.T) {
	c, api, favs, settings, _ := newTestController(100)
	ctx := context.Background()

	favs.Add("bitcoin")
	if err := c.LoadFavorites(ctx); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}
	if got := api.nameidsCalls(); got != 1 {
		t.Fatalf("FetchByNameids called %d times, want 1", got)
	}

	// The top tab is active, but a sort change still has to re-sort the
	// favorites list.
	settings.SetSorting(domain.SortPrice)
	c.onSettingsChanged(ctx)

	if got := api.nameidsCalls(); got != 2 {
		t.Errorf("FetchByNameids called %d times, want 2 (favorites reload regardless of tab)", got)
	}
	if got := api.topCalls(); len(got) != 1 {
		t.Errorf("FetchTop called %d times, want 1 (active top tab reloads)", len(got))
	}
}

func TestSettingsChange_SkipsTopReloadOnFavoritesTab(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	c.SelectTab(TabFavorites)

	c.onSettingsChanged(context.Background())

	if got := api.topCalls(); len(got) != 0 {
		t.Errorf("FetchTop called %d times, want 0 (top tab inactive)", len(got))
	}
}

func TestSearch_FailureClearsPreviousResults(t *testing.T) {
	c, api, _, _, _ := newTestController(100)
	ctx := context.Background()
	api.searchResult = []domain.Coin{{Nameid: "bitcoin", Name: "Bitcoin"}}

	c.Search(ctx, "bitcoin")
	time.Sleep(100 * time.Millisecond)
	c.Wait()
	if snap := c.Snapshot(); len(snap.SearchResults) != 1 {
		t.Fatalf("priming search results = %d, want 1", len(snap.SearchResults))
	}

	api.mu.Lock()
	api.searchErr = apierr.NewStatus(apierr.ServerError, 503)
	api.mu.Unlock()
	c.Search(ctx, "ethereum")
	time.Sleep(100 * time.Millisecond)
	c.Wait()

	snap := c.Snapshot()
	if len(snap.SearchResults) != 0 {
		t.Errorf("failed search left %d stale results, want 0", len(snap.SearchResults))
	}
	if snap.Err != nil {
		t.Errorf("server error on search should stay log-only, got %v", snap.Err)
	}
}

func TestLoadFavorites_SuccessClearsSurfacedError(t *testing.T) {
	c, api, favs, _, _ := newTestController(100)
	ctx := context.Background()
	favs.Add("bitcoin")

	api.mu.Lock()
	api.failNext = apierr.New(apierr.NetworkUnavailable, nil)
	api.mu.Unlock()
	if err := c.LoadFavorites(ctx); err == nil {
		t.Fatal("expected LoadFavorites failure")
	}
	if snap := c.Snapshot(); snap.Err == nil {
		t.Fatal("network failure should surface")
	}

	if err := c.LoadFavorites(ctx); err != nil {
		t.Fatalf("recovery LoadFavorites: %v", err)
	}
	if snap := c.Snapshot(); snap.Err != nil {
		t.Errorf("recovered load should clear the error, got %v", snap.Err)
	}
}

func TestStart_LiveTierForcesEveryTick(t *testing.T) {
	c, api, _, settings, _ := newTestController(100)
	settings.SetRefreshInterval(domain.RefreshLive)
	// Drop the re-arm signal the preference change just queued so only
	// timer ticks drive the loop.
	select {
	case <-c.settingsChanged:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	// The clock is pinned, so data never goes stale; only the live
	// tier's forcing explains repeated fetches.
	deadline := time.After(5 * time.Second)
	for len(api.topCalls()) < 2 {
		select {
		case <-deadline:
			cancel()
			c.Wait()
			t.Fatalf("FetchTop called %d times, want >=2 from live ticks", len(api.topCalls()))
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	c.Wait()
}

func TestStart_SettingsChangeTriggersReload(t *testing.T) {
	c, api, favs, settings, _ := newTestController(100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	favs.Add("bitcoin")
	if err := c.LoadFavorites(ctx); err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}

	settings.SetRefreshInterval(domain.RefreshManual)
	select {
	case <-c.settingsChanged:
	default:
	}
	c.Start(ctx)

	// Manual tier: the loop idles until a preference changes, then
	// reloads favorites and the active top tab.
	settings.SetSorting(domain.SortVolume)

	deadline := time.After(5 * time.Second)
	for api.nameidsCalls() < 2 || len(api.topCalls()) < 1 {
		select {
		case <-deadline:
			cancel()
			c.Wait()
			t.Fatalf("after settings change: nameids=%d top=%d, want >=2 and >=1",
				api.nameidsCalls(), len(api.topCalls()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	c.Wait()
}
