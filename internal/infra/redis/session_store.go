package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-portal/internal/app"
)

// SessionStore keeps per-browser-session state in Redis so any instance
// can serve a session: the exported PocketBase auth and the quiz in
// progress. It implements app.TokenStore and app.ProgressStore.
type SessionStore struct {
	client      *redis.Client
	authTTL     time.Duration
	progressTTL time.Duration
}

func NewSessionStore(client *redis.Client, authTTL, progressTTL time.Duration) *SessionStore {
	return &SessionStore{
		client:      client,
		authTTL:     authTTL,
		progressTTL: progressTTL,
	}
}

func (s *SessionStore) LoadAuth(ctx context.Context, sessionID string) (string, bool, error) {
	blob, err := s.client.Get(ctx, s.authKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get auth: %w", err)
	}
	return blob, true, nil
}

func (s *SessionStore) SaveAuth(ctx context.Context, sessionID, blob string) error {
	if err := s.client.Set(ctx, s.authKey(sessionID), blob, s.authTTL).Err(); err != nil {
		return fmt.Errorf("set auth: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteAuth(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.authKey(sessionID)).Err()
}

func (s *SessionStore) LoadProgress(ctx context.Context, key string) (app.QuizProgress, bool, error) {
	raw, err := s.client.Get(ctx, s.progressKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.QuizProgress{}, false, nil
	}
	if err != nil {
		return app.QuizProgress{}, false, fmt.Errorf("get progress: %w", err)
	}
	var p app.QuizProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return app.QuizProgress{}, false, fmt.Errorf("decode progress: %w", err)
	}
	return p, true, nil
}

func (s *SessionStore) SaveProgress(ctx context.Context, key string, p app.QuizProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.client.Set(ctx, s.progressKey(key), raw, s.progressTTL).Err(); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteProgress(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.progressKey(key)).Err()
}

func (s *SessionStore) authKey(sessionID string) string {
	return "quiz:auth:" + sessionID
}

func (s *SessionStore) progressKey(key string) string {
	return "quiz:progress:" + key
}
