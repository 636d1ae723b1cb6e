// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"
)

// Transition is an online/offline edge.
type Transition struct {
	Online bool
}

// Monitor holds the current online flag and fans out edges to subscribers.
// It performs no debouncing; repeated flapping produces repeated edges.
type Monitor struct {
	log *zap.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan Transition
	next   int
}

// New returns a monitor seeded with the platform's current state.
func New(online bool, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{online: online, log: log, subs: make(map[int]chan Transition)}
}

// IsOnline reports the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a platform event. Subscribers see a Transition only on a real edge.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	dropped := 0
	for _, ch := range m.subs {
		// slow subscribers lose edges rather than block the platform
		select {
		case ch <- Transition{Online: online}:
		default:
			dropped++
		}
	}
	m.mu.Unlock()

	m.log.Info("connectivity changed", zap.Bool("online", online))
	if dropped > 0 {
		m.log.Warn("connectivity: subscribers lagging, edge dropped", zap.Int("subscribers", dropped))
	}
}

// Subscribe returns a buffered edge stream and a cancel func that closes it.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 8)
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// StateConn is the subset of *grpc.ClientConn the watcher needs.
type StateConn interface {
	GetState() connectivity.State
	WaitForStateChange(ctx context.Context, source connectivity.State) bool
	Connect()
}

// Online maps a gRPC connection state to the online flag. ok is false for
// states that carry no information (Idle, Connecting).
func Online(s connectivity.State) (online, ok bool) {
	switch s {
	case connectivity.Ready:
		return true, true
	case connectivity.TransientFailure, connectivity.Shutdown:
		return false, true
	default:
		return false, false
	}
}

// WatchConn follows conn's state changes until ctx is done or the conn shuts down.
func (m *Monitor) WatchConn(ctx context.Context, conn StateConn) {
	conn.Connect()
	state := conn.GetState()
	for {
		if online, ok := Online(state); ok {
			m.Set(online)
		}
		if state == connectivity.Shutdown {
			return
		}
		if state == connectivity.Idle {
			// an idle channel never leaves Idle on its own
			conn.Connect()
		}
		if !conn.WaitForStateChange(ctx, state) {
			return
		}
		state = conn.GetState()
	}
}

// Probe waits for the first informative state of conn and reports whether it
// is online. It gives up, reporting offline, when ctx is done.
func Probe(ctx context.Context, conn StateConn) bool {
	conn.Connect()
	state := conn.GetState()
	for {
		if online, ok := Online(state); ok {
			return online
		}
		if state == connectivity.Idle {
			conn.Connect()
		}
		if !conn.WaitForStateChange(ctx, state) {
			return false
		}
		state = conn.GetState()
	}
}
