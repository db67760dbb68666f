package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/domain"
)

const feedBuffer = 8

// BoardSource computes every non-category board in one pass.
type BoardSource interface {
	All(ctx context.Context) (map[domain.Board][]domain.RankingRow, time.Time, error)
}

// SnapshotSink receives every recomputed set of boards.
type SnapshotSink interface {
	SaveSnapshots(ctx context.Context, snaps []domain.LeaderboardSnapshot) error
}

// LeaderboardFeed keeps the latest snapshot per board and pushes updates to
// subscribers. Slow subscribers lose stale snapshots rather than block a
// broadcast.
type LeaderboardFeed struct {
	source BoardSource
	hub    *RealtimeHub
	clock  clockwork.Clock
	every  time.Duration
	sinks  []SnapshotSink
	logger *slog.Logger
	kick   chan struct{}

	mu          sync.RWMutex
	latest      map[domain.Board]domain.LeaderboardSnapshot
	subscribers map[domain.Board]map[chan domain.LeaderboardSnapshot]struct{}
	onRefresh   func(time.Duration, error)
}

type FeedOption func(*LeaderboardFeed)

// WithEvents recomputes the boards on debounced submission events.
func WithEvents(hub *RealtimeHub) FeedOption {
	return func(f *LeaderboardFeed) { f.hub = hub }
}

// WithRefreshEvery recomputes the boards on a fixed interval as well.
func WithRefreshEvery(d time.Duration) FeedOption {
	return func(f *LeaderboardFeed) { f.every = d }
}

func WithSinks(sinks ...SnapshotSink) FeedOption {
	return func(f *LeaderboardFeed) { f.sinks = append(f.sinks, sinks...) }
}

func WithFeedClock(c clockwork.Clock) FeedOption {
	return func(f *LeaderboardFeed) { f.clock = c }
}

func WithFeedLogger(l *slog.Logger) FeedOption {
	return func(f *LeaderboardFeed) { f.logger = l }
}

// WithRefreshHook observes every recompute; metrics use it.
func WithRefreshHook(fn func(elapsed time.Duration, err error)) FeedOption {
	return func(f *LeaderboardFeed) { f.onRefresh = fn }
}

func NewLeaderboardFeed(source BoardSource, opts ...FeedOption) *LeaderboardFeed {
	f := &LeaderboardFeed{
		source:      source,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
		kick:        make(chan struct{}, 1),
		latest:      make(map[domain.Board]domain.LeaderboardSnapshot),
		subscribers: make(map[domain.Board]map[chan domain.LeaderboardSnapshot]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run refreshes once, then on every trigger until ctx is done.
func (f *LeaderboardFeed) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		f.logger.WarnContext(ctx, "initial leaderboard refresh failed", "error", err)
	}
	if f.hub != nil {
		if err := f.hub.SubscribeToLeaderboardUpdates(ctx, func(SubmissionEvent) { f.Trigger() }); err != nil {
			return err
		}
		defer f.hub.UnsubscribeFromLeaderboardUpdates()
	}
	var tick <-chan time.Time
	if f.every > 0 {
		t := f.clock.NewTicker(f.every)
		defer t.Stop()
		tick = t.Chan()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.kick:
		case <-tick:
		}
		if err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
			f.logger.WarnContext(ctx, "leaderboard refresh failed", "error", err)
		}
	}
}

// Trigger asks Run for a refresh. Triggers coalesce while one is pending.
func (f *LeaderboardFeed) Trigger() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Refresh recomputes every board, publishes the snapshots and hands them to
// the sinks. Sink failures are logged and do not fail the refresh.
func (f *LeaderboardFeed) Refresh(ctx context.Context) error {
	start := f.clock.Now()
	boards, at, err := f.source.All(ctx)
	if f.onRefresh != nil {
		f.onRefresh(f.clock.Since(start), err)
	}
	if err != nil {
		return err
	}

	snaps := make([]domain.LeaderboardSnapshot, 0, len(boards))
	f.mu.Lock()
	for _, b := range domain.Boards {
		rows, ok := boards[b]
		if !ok {
			continue
		}
		snap := domain.LeaderboardSnapshot{Board: b, Rows: rows, UpdatedAt: at}
		f.latest[b] = snap
		f.broadcastLocked(snap)
		snaps = append(snaps, snap)
	}
	f.mu.Unlock()

	for _, sink := range f.sinks {
		if err := sink.SaveSnapshots(ctx, snaps); err != nil {
			f.logger.WarnContext(ctx, "save leaderboard snapshots", "error", err)
		}
	}
	return nil
}

// Snapshot returns the latest snapshot of board.
func (f *LeaderboardFeed) Snapshot(board domain.Board) (domain.LeaderboardSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.latest[board]
	return snap, ok
}

// Subscribe returns a channel of snapshots of board, primed with the latest
// one when there is one. The caller must invoke cancel.
func (f *LeaderboardFeed) Subscribe(board domain.Board) (<-chan domain.LeaderboardSnapshot, func(), error) {
	if !slices.Contains(domain.Boards, board) {
		return nil, nil, domain.Errorf(domain.CodeValidation, "Unknown leaderboard %q", board)
	}
	ch := make(chan domain.LeaderboardSnapshot, feedBuffer)

	f.mu.Lock()
	if f.subscribers[board] == nil {
		f.subscribers[board] = make(map[chan domain.LeaderboardSnapshot]struct{})
	}
	f.subscribers[board][ch] = struct{}{}
	if snap, ok := f.latest[board]; ok {
		ch <- snap
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[board][ch]; ok {
			delete(f.subscribers[board], ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// Subscribers counts open subscriptions across boards.
func (f *LeaderboardFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, subs := range f.subscribers {
		n += len(subs)
	}
	return n
}

func (f *LeaderboardFeed) broadcastLocked(snap domain.LeaderboardSnapshot) {
	for ch := range f.subscribers[snap.Board] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
