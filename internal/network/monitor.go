package network

import (
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure Monitor implements interfaces.NetworkStatus
var _ interfaces.NetworkStatus = (*Monitor)(nil)

type observer struct {
	id int
	fn func(models.NetworkState)
}

// Monitor tracks process-wide connectivity and notifies observers of transitions
type Monitor struct {
	clock  clock.Clock
	logger *zap.Logger

	mu        sync.Mutex
	state     models.NetworkState
	observers []observer
	nextID    int

	// notifyMu keeps observer calls in transition order
	notifyMu sync.Mutex
}

// NewMonitor creates a monitor from a startup connectivity snapshot. A nil clock uses the wall clock.
func NewMonitor(online bool, clk clock.Clock, logger *zap.Logger) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		clock:  clk,
		logger: logger,
		state: models.NetworkState{
			Online:         online,
			TransitionedAt: clk.Now(),
		},
	}
}

// State returns the current snapshot
func (m *Monitor) State() models.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the process is currently online
func (m *Monitor) Online() bool {
	return m.State().Online
}

// Subscribe registers fn for transitions. Observers run in registration order.
func (m *Monitor) Subscribe(fn func(models.NetworkState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, observer{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Signal reports observed connectivity. Only genuine changes produce a transition.
func (m *Monitor) Signal(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.state.Online == online {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	if online {
		outage := now.Sub(m.state.TransitionedAt)
		m.state = models.NetworkState{Online: true, TransitionedAt: now, LastOutageDuration: &outage}
	} else {
		m.state = models.NetworkState{Online: false, TransitionedAt: now}
	}
	state := m.state
	observers := make([]observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if online {
		m.logger.Info("Network connectivity restored", zap.Duration("outage", *state.LastOutageDuration))
	} else {
		m.logger.Warn("Network connectivity lost")
	}

	for _, o := range observers {
		o.fn(state)
	}
}
