package store

import (
	"log/slog"
	"sync"
)

// favoritesKey holds the persisted set of favorite coin nameids.
const favoritesKey = "FavoriteCryptocurrencies"

// FavoritesStore tracks the user's favorite coins by nameid. The set
// is loaded once at construction and written through on every change.
type FavoritesStore struct {
	mu       sync.Mutex
	kv       KV
	nameids  map[string]struct{}
	onChange []func()
	logger   *slog.Logger
}

func NewFavoritesStore(kv KV, logger *slog.Logger) *FavoritesStore {
	if logger == nil {
		logger = slog.Default()
	}
	nameids, err := kv.GetStringSet(favoritesKey)
	if err != nil {
		logger.Warn("failed to load favorites, starting empty", slog.Any("error", err))
		nameids = make(map[string]struct{})
	}
	return &FavoritesStore{kv: kv, nameids: nameids, logger: logger}
}

// OnChange registers a callback invoked after every mutation.
func (f *FavoritesStore) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = append(f.onChange, fn)
	f.mu.Unlock()
}

// IsFavorite reports whether the nameid is in the set.
func (f *FavoritesStore) IsFavorite(nameid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nameids[nameid]
	return ok
}

// Toggle flips membership and returns the new state.
func (f *FavoritesStore) Toggle(nameid string) bool {
	f.mu.Lock()
	_, ok := f.nameids[nameid]
	if ok {
		delete(f.nameids, nameid)
	} else {
		f.nameids[nameid] = struct{}{}
	}
	f.persistLocked()
	subs := f.snapshotSubsLocked()
	f.mu.Unlock()

	notify(subs)
	return !ok
}

// Add inserts a nameid. Adding an existing member is a no-op.
func (f *FavoritesStore) Add(nameid string) {
	f.mu.Lock()
	if _, ok := f.nameids[nameid]; ok {
		f.mu.Unlock()
		return
	}
	f.nameids[nameid] = struct{}{}
	f.persistLocked()
	subs := f.snapshotSubsLocked()
	f.mu.Unlock()
	notify(subs)
}

// Remove deletes a nameid. Removing a non-member is a no-op.
func (f *FavoritesStore) Remove(nameid string) {
	f.mu.Lock()
	if _, ok := f.nameids[nameid]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.nameids, nameid)
	f.persistLocked()
	subs := f.snapshotSubsLocked()
	f.mu.Unlock()
	notify(subs)
}

// Nameids returns a copy of the current set.
func (f *FavoritesStore) Nameids() map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.nameids))
	for id := range f.nameids {
		out[id] = struct{}{}
	}
	return out
}

// Count returns the number of favorites.
func (f *FavoritesStore) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nameids)
}

// Clear empties the set.
func (f *FavoritesStore) Clear() {
	f.mu.Lock()
	if len(f.nameids) == 0 {
		f.mu.Unlock()
		return
	}
	f.nameids = make(map[string]struct{})
	f.persistLocked()
	subs := f.snapshotSubsLocked()
	f.mu.Unlock()
	notify(subs)
}

func (f *FavoritesStore) persistLocked() {
	if err := f.kv.SetStringSet(favoritesKey, f.nameids); err != nil {
		f.logger.Error("failed to persist favorites", slog.Any("error", err))
	}
}

func (f *FavoritesStore) snapshotSubsLocked() []func() {
	subs := make([]func(), len(f.onChange))
	copy(subs, f.onChange)
	return subs
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
