package infra

import (
	"context"
	"testing"
	"time"
)

func TestNetworkMonitor_DefaultsReachable(t *testing.T) {
	m := NewNetworkMonitor()
	if !m.Reachable() {
		t.Error("fresh monitor should assume connectivity")
	}
}

func TestNetworkMonitor_NotifiesOnTransition(t *testing.T) {
	m := NewNetworkMonitor()

	var transitions []bool
	m.OnChange(func(up bool) { transitions = append(transitions, up) })

	m.SetReachable(true)  // no change, no notification
	m.SetReachable(false) // transition
	m.SetReachable(false) // no change
	m.SetReachable(true)  // transition

	if len(transitions) != 2 || transitions[0] != false || transitions[1] != true {
		t.Errorf("transitions = %v, want [false true]", transitions)
	}
	if !m.Reachable() {
		t.Error("monitor should report reachable after final transition")
	}
}

func TestNetworkMonitor_Watch(t *testing.T) {
	m := NewNetworkMonitor()

	online := false
	probe := func(ctx context.Context) bool { return online }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, probe, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for m.Reachable() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Reachable() {
		t.Error("watcher should have observed the offline probe")
	}

	online = true
	deadline = time.Now().Add(time.Second)
	for !m.Reachable() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !m.Reachable() {
		t.Error("watcher should have observed recovery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Watch did not stop on context cancellation")
	}
}
