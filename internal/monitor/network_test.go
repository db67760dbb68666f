package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedHealth struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (h *scriptedHealth) Health(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (h *scriptedHealth) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func TestNetworkMonitorTracksStatus(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	health := &scriptedHealth{errs: []error{nil, errors.New("connection refused")}}
	var states []bool
	m := NewNetworkMonitor(health,
		WithMonitorClock(clock),
		WithStatusHook(func(online bool) { states = append(states, online) }),
	)

	require.True(t, m.Check(context.Background()))
	assert.Equal(t, clock.Now(), m.Status().LastPing)

	clock.Advance(time.Minute)
	require.False(t, m.Check(context.Background()))
	status := m.Status()
	assert.False(t, status.Online)
	assert.False(t, m.Ready())
	assert.Equal(t, clock.Now().Add(-time.Minute), status.LastPing, "last ping only moves on success")

	require.True(t, m.Check(context.Background()))
	assert.Equal(t, []bool{true, false, true}, states)
}

func TestNetworkMonitorRunPollsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	health := &scriptedHealth{}
	m := NewNetworkMonitor(health, WithMonitorClock(clock), WithInterval(10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return health.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return health.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
