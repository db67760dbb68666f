package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

const (
	defaultDebounce   = 500 * time.Millisecond
	leaderboardKey    = "leaderboard_updates"
	userSubmissionKey = "user_submissions_"
)

// RealtimeSource delivers record events of a collection.
type RealtimeSource interface {
	SubscribeCollection(ctx context.Context, collection string, fn func(pocketbase.Event)) (func(), error)
}

// SubmissionEvent is a change on the submissions collection.
type SubmissionEvent struct {
	Action     string            `json:"action"`
	Submission domain.Submission `json:"submission"`
}

// RealtimeHub keys realtime submission subscriptions and debounces their
// callbacks so a burst of events yields one call with the latest event.
type RealtimeHub struct {
	source   RealtimeSource
	clock    clockwork.Clock
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]*hubSubscription
}

type RealtimeHubOption func(*RealtimeHub)

func WithDebounce(d time.Duration) RealtimeHubOption {
	return func(h *RealtimeHub) {
		if d > 0 {
			h.debounce = d
		}
	}
}

func WithHubClock(c clockwork.Clock) RealtimeHubOption {
	return func(h *RealtimeHub) { h.clock = c }
}

func WithHubLogger(l *slog.Logger) RealtimeHubOption {
	return func(h *RealtimeHub) { h.logger = l }
}

func NewRealtimeHub(source RealtimeSource, opts ...RealtimeHubOption) *RealtimeHub {
	h := &RealtimeHub{
		source:   source,
		clock:    clockwork.NewRealClock(),
		debounce: defaultDebounce,
		logger:   slog.Default(),
		subs:     make(map[string]*hubSubscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubscribeToUserSubmissions calls cb for changes to submissions of userID.
// An existing subscription for the same user is replaced.
func (h *RealtimeHub) SubscribeToUserSubmissions(ctx context.Context, userID string, cb func(SubmissionEvent)) error {
	if !ValidID(userID) {
		return invalid(domain.CodeInvalidUserID, "Invalid user ID provided for subscription")
	}
	return h.subscribe(ctx, userSubmissionKey+userID, func(ev SubmissionEvent) bool {
		return ev.Submission.User == userID
	}, cb)
}

func (h *RealtimeHub) UnsubscribeFromUserSubmissions(userID string) {
	h.unsubscribe(userSubmissionKey + userID)
}

// SubscribeToLeaderboardUpdates calls cb for any submission change.
func (h *RealtimeHub) SubscribeToLeaderboardUpdates(ctx context.Context, cb func(SubmissionEvent)) error {
	return h.subscribe(ctx, leaderboardKey, nil, cb)
}

func (h *RealtimeHub) UnsubscribeFromLeaderboardUpdates() {
	h.unsubscribe(leaderboardKey)
}

// Active lists the keys of live subscriptions.
func (h *RealtimeHub) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.subs))
	for k := range h.subs {
		keys = append(keys, k)
	}
	return keys
}

// Cleanup drops every subscription and pending callback.
func (h *RealtimeHub) Cleanup() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*hubSubscription)
	h.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

func (h *RealtimeHub) subscribe(ctx context.Context, key string, match func(SubmissionEvent) bool, cb func(SubmissionEvent)) error {
	h.unsubscribe(key)

	sub := &hubSubscription{clock: h.clock, delay: h.debounce, cb: cb}
	unsubscribe, err := h.source.SubscribeCollection(ctx, CollectionSubmissions, func(ev pocketbase.Event) {
		var s domain.Submission
		if err := ev.Decode(&s); err != nil {
			h.logger.Warn("decode realtime submission", "key", key, "error", err)
			return
		}
		se := SubmissionEvent{Action: ev.Action, Submission: s}
		if match != nil && !match(se) {
			return
		}
		sub.fire(se)
	})
	if err != nil {
		return fail(err, domain.CodeServiceUnavailable)
	}
	sub.unsubscribe = unsubscribe

	h.mu.Lock()
	prev := h.subs[key]
	h.subs[key] = sub
	h.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
	return nil
}

func (h *RealtimeHub) unsubscribe(key string) {
	h.mu.Lock()
	sub, ok := h.subs[key]
	delete(h.subs, key)
	h.mu.Unlock()
	if ok {
		sub.stop()
	}
}

type hubSubscription struct {
	clock       clockwork.Clock
	delay       time.Duration
	cb          func(SubmissionEvent)
	unsubscribe func()

	mu      sync.Mutex
	timer   clockwork.Timer
	pending SubmissionEvent
	stopped bool
}

// fire restarts the debounce timer with ev as the event to deliver.
func (s *hubSubscription) fire(ev SubmissionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = ev
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, s.deliver)
}

func (s *hubSubscription) deliver() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ev := s.pending
	s.timer = nil
	s.mu.Unlock()
	s.cb(ev)
}

func (s *hubSubscription) stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
