package app

import (
	"context"
	"fmt"

	"quiz-portal/internal/pocketbase"
)

// TokenStore keeps exported auth stores by browser session id.
type TokenStore interface {
	LoadAuth(ctx context.Context, sessionID string) (string, bool, error)
	SaveAuth(ctx context.Context, sessionID, blob string) error
	DeleteAuth(ctx context.Context, sessionID string) error
}

type sessionAuth struct {
	store     TokenStore
	sessionID string
}

func (s sessionAuth) SaveAuth(ctx context.Context, blob string) error {
	return s.store.SaveAuth(ctx, s.sessionID, blob)
}

func (s sessionAuth) ClearAuth(ctx context.Context) error {
	return s.store.DeleteAuth(ctx, s.sessionID)
}

// PersistTo binds a TokenStore to one browser session.
func PersistTo(store TokenStore, sessionID string) AuthPersister {
	return sessionAuth{store: store, sessionID: sessionID}
}

// RestoreAuth loads the auth store saved for sessionID. A session without
// saved auth yields an empty store.
func RestoreAuth(ctx context.Context, store TokenStore, sessionID string) (*pocketbase.AuthStore, error) {
	auth := pocketbase.NewAuthStore()
	blob, ok, err := store.LoadAuth(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load auth: %w", err)
	}
	if !ok {
		return auth, nil
	}
	if err := auth.Import(blob); err != nil {
		return nil, err
	}
	return auth, nil
}
