package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/app"
)

// SessionStore keeps per-browser-session state in process: the exported
// PocketBase auth and the quiz in progress. It implements app.TokenStore
// and app.ProgressStore.
type SessionStore struct {
	authTTL     time.Duration
	progressTTL time.Duration
	clock       clockwork.Clock

	mu       sync.RWMutex
	auth     map[string]entry[string]
	progress map[string]entry[app.QuizProgress]
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewSessionStore keeps auth for authTTL and quiz progress for
// progressTTL. A zero TTL never expires.
func NewSessionStore(authTTL, progressTTL time.Duration, clock clockwork.Clock) *SessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionStore{
		authTTL:     authTTL,
		progressTTL: progressTTL,
		clock:       clock,
		auth:        make(map[string]entry[string]),
		progress:    make(map[string]entry[app.QuizProgress]),
	}
}

func (s *SessionStore) LoadAuth(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.auth[sessionID]
	if !ok || s.expired(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *SessionStore) SaveAuth(_ context.Context, sessionID, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth[sessionID] = entry[string]{value: blob, expiresAt: s.deadline(s.authTTL)}
	return nil
}

func (s *SessionStore) DeleteAuth(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.auth, sessionID)
	return nil
}

func (s *SessionStore) LoadProgress(_ context.Context, key string) (app.QuizProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.progress[key]
	if !ok || s.expired(e.expiresAt) {
		return app.QuizProgress{}, false, nil
	}
	return e.value, true, nil
}

func (s *SessionStore) SaveProgress(_ context.Context, key string, p app.QuizProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[key] = entry[app.QuizProgress]{value: p, expiresAt: s.deadline(s.progressTTL)}
	return nil
}

func (s *SessionStore) DeleteProgress(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, key)
	return nil
}

// Sweep removes expired entries.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.auth {
		if s.expired(e.expiresAt) {
			delete(s.auth, k)
			n++
		}
	}
	for k, e := range s.progress {
		if s.expired(e.expiresAt) {
			delete(s.progress, k)
			n++
		}
	}
	return n
}

func (s *SessionStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.clock.Now().Add(ttl)
}

func (s *SessionStore) expired(at time.Time) bool {
	return !at.IsZero() && !at.After(s.clock.Now())
}
