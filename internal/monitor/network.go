package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultCheckInterval = 30 * time.Second

// HealthChecker probes the backend, e.g. pocketbase.Client.Health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NetworkStatus is the last known reachability of the backend.
type NetworkStatus struct {
	Online   bool      `json:"online"`
	LastPing time.Time `json:"lastPing,omitzero"`
}

// NetworkMonitor polls the backend health endpoint and tracks whether it
// is reachable.
type NetworkMonitor struct {
	checker  HealthChecker
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	onChange func(online bool)

	mu     sync.RWMutex
	status NetworkStatus
}

type MonitorOption func(*NetworkMonitor)

func WithInterval(d time.Duration) MonitorOption {
	return func(m *NetworkMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithMonitorClock(c clockwork.Clock) MonitorOption {
	return func(m *NetworkMonitor) { m.clock = c }
}

func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *NetworkMonitor) { m.logger = l }
}

// WithStatusHook is called after every check with the resulting state.
func WithStatusHook(fn func(online bool)) MonitorOption {
	return func(m *NetworkMonitor) { m.onChange = fn }
}

// NewNetworkMonitor starts out online, matching a browser that has not
// seen a failure yet.
func NewNetworkMonitor(checker HealthChecker, opts ...MonitorOption) *NetworkMonitor {
	m := &NetworkMonitor{
		checker:  checker,
		clock:    clockwork.NewRealClock(),
		interval: defaultCheckInterval,
		logger:   slog.Default(),
		status:   NetworkStatus{Online: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check probes once and reports whether the backend answered.
func (m *NetworkMonitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.checker.Health(ctx)

	m.mu.Lock()
	wasOnline := m.status.Online
	m.status.Online = err == nil
	if err == nil {
		m.status.LastPing = m.clock.Now()
	}
	m.mu.Unlock()

	if err != nil && wasOnline {
		m.logger.WarnContext(ctx, "network: connection check failed", "error", err)
	}
	if err == nil && !wasOnline {
		m.logger.InfoContext(ctx, "network: back online")
	}
	if m.onChange != nil {
		m.onChange(err == nil)
	}
	return err == nil
}

// Run checks immediately and then on every interval until ctx is done.
func (m *NetworkMonitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Check(ctx)
		}
	}
}

func (m *NetworkMonitor) Status() NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Ready reports whether the last check succeeded.
func (m *NetworkMonitor) Ready() bool {
	return m.Status().Online
}
