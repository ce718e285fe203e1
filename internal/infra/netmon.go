package infra

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// NetworkMonitor tracks live connectivity. State changes are pushed via
// SetReachable (platform glue, connection-error hooks) or produced by
// the optional background watcher; subscribers are notified on every
// transition. The pricing client consults Reachable before spending a
// rate-limit slot on a request that cannot succeed.
type NetworkMonitor struct {
	reachable atomic.Bool

	mu   sync.Mutex
	subs []func(bool)
}

// NewNetworkMonitor creates a monitor that assumes connectivity until
// told otherwise.
func NewNetworkMonitor() *NetworkMonitor {
	m := &NetworkMonitor{}
	m.reachable.Store(true)
	return m
}

// Reachable reports the last known connectivity state.
func (m *NetworkMonitor) Reachable() bool {
	return m.reachable.Load()
}

// SetReachable records a connectivity transition and notifies
// subscribers when the state actually changed.
func (m *NetworkMonitor) SetReachable(online bool) {
	if m.reachable.Swap(online) == online {
		return
	}

	slog.Info("Network reachability changed", slog.Bool("reachable", online))

	m.mu.Lock()
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// OnChange registers a callback invoked on every reachability transition.
func (m *NetworkMonitor) OnChange(fn func(reachable bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Probe checks whether a network path currently exists.
type Probe func(ctx context.Context) bool

// DialProbe returns a probe that attempts a TCP connection to addr.
func DialProbe(addr string, timeout time.Duration) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// Watch runs probe on the given cadence until ctx is cancelled, feeding
// results into the monitor. It blocks; run it in its own goroutine.
func (m *NetworkMonitor) Watch(ctx context.Context, probe Probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.SetReachable(probe(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetReachable(probe(ctx))
		}
	}
}
