// Package connectivity maintains the process-wide online/offline state.
//
// The monitor is event-driven only: it never probes the network itself.
// Whoever observes the platform's reachability signal (the daemon's
// transport hooks, a browser bridge, a test) reports transitions through
// SetOnline, and subscribers are notified on every change. IsOnline is a
// cached read with no I/O.
package connectivity

import "sync"

// Monitor holds the current reachability state and transition listeners.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// New creates a monitor with the given initial state, typically derived
// from a startup reachability check.
func New(online bool) *Monitor {
	return &Monitor{online: online}
}

// IsOnline returns the cached state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a reachability transition. Subscribers are notified
// only on actual changes; repeated reports of the same state are ignored.
// Notifications run on the caller's goroutine, in subscription order.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a callback for state transitions. Callbacks must
// not block; slow reactions (stabilization delays, drains) belong on
// their own goroutine.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
