// Package connectivity reports whether the sync endpoint is reachable.
//
// A Monitor probes on an interval and emits only transitions on its Changes
// channel. Static is a hand-driven signal for tests and offline mode.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Signal is a connectivity source.
type Signal interface {
	// Online reports the last known state.
	Online() bool

	// Changes emits the new state on every transition.
	Changes() <-chan bool
}

// Prober checks reachability once. A nil error means online.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config holds monitor configuration
type Config struct {
	// Interval between probes (default: 15s)
	Interval time.Duration

	// Timeout per probe (default: 5s)
	Timeout time.Duration

	// Logger (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Monitor probes a Prober periodically.
type Monitor struct {
	prober Prober
	config *Config
	log    logrus.FieldLogger

	online  atomic.Bool
	probing sync.Mutex
	changes chan bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Signal = (*Monitor)(nil)

// NewMonitor creates a monitor. Zero config fields take their defaults.
func NewMonitor(p Prober, config *Config) *Monitor {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Monitor{
		prober:  p,
		config:  config,
		log:     logger.WithField("component", "connectivity"),
		changes: make(chan bool, 16),
	}
}

// Start runs the first probe synchronously to settle the initial state, then
// keeps probing in the background until ctx ends or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.online.Store(m.probe(ctx))
	m.log.WithField("online", m.online.Load()).Info("connectivity monitor started")

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop ends probing and closes Changes.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		close(m.changes)
	})
}

// Online reports the last probe result.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Changes emits transitions. It is closed by Stop.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// Check probes now and records the result, emitting a transition if the
// state changed. It must not be called after Stop.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx)
	if m.online.Swap(online) != online {
		m.log.WithField("online", online).Info("connectivity changed")
		select {
		case m.changes <- online:
		default:
			m.log.Warn("connectivity change channel full, dropping event")
		}
	}
	return online
}

func (m *Monitor) probe(ctx context.Context) bool {
	m.probing.Lock()
	defer m.probing.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()
	if err := m.prober.Ping(ctx); err != nil {
		m.log.WithError(err).Debug("probe failed")
		return false
	}
	return true
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Static is a connectivity signal set by hand.
type Static struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

var _ Signal = (*Static)(nil)

// NewStatic returns a signal in the given state.
func NewStatic(online bool) *Static {
	return &Static{online: online, changes: make(chan bool, 16)}
}

func (s *Static) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Static) Changes() <-chan bool {
	return s.changes
}

// Set changes the state, emitting a transition if it differs.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == online {
		return
	}
	s.online = online
	s.changes <- online
}
