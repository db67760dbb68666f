package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

func TestSessionStoreAuthLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewSessionStore(time.Hour, time.Hour, clock)

	if err := store.SaveAuth(ctx, "sid", `{"token":"t"}`); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	blob, ok, err := store.LoadAuth(ctx, "sid")
	if err != nil || !ok || blob != `{"token":"t"}` {
		t.Fatalf("expected saved auth, got %q %v %v", blob, ok, err)
	}

	clock.Advance(time.Hour)
	if _, ok, _ := store.LoadAuth(ctx, "sid"); ok {
		t.Fatalf("expected auth to expire")
	}
	if n := store.Sweep(); n != 1 {
		t.Fatalf("expected one swept entry, got %d", n)
	}
}

func TestSessionStoreProgress(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0, 0, nil)
	p := app.QuizProgress{
		Quiz:    sampleQuiz(),
		Answers: map[string]domain.Answer{"q1": domain.SingleAnswer("4")},
	}

	if err := store.SaveProgress(ctx, "sid", p); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	got, ok, err := store.LoadProgress(ctx, "sid")
	if err != nil || !ok {
		t.Fatalf("expected progress, got %v %v", ok, err)
	}
	if got.Quiz.ID != "quiz-1" || len(got.Answers) != 1 {
		t.Fatalf("unexpected progress %+v", got)
	}

	_ = store.DeleteProgress(ctx, "sid")
	if _, ok, _ := store.LoadProgress(ctx, "sid"); ok {
		t.Fatalf("expected progress removed")
	}
}

func TestSessionStoreBacksPortalAuth(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour, time.Hour, nil)
	persist := app.PersistTo(store, "sid")

	if err := persist.SaveAuth(ctx, `{"token":"abc","record":{"id":"u1"}}`); err != nil {
		t.Fatalf("persist: %v", err)
	}
	auth, err := app.RestoreAuth(ctx, store, "sid")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if auth.Token() != "abc" {
		t.Fatalf("expected restored token, got %q", auth.Token())
	}

	_ = persist.ClearAuth(ctx)
	auth, err = app.RestoreAuth(ctx, store, "sid")
	if err != nil || auth.Token() != "" {
		t.Fatalf("expected empty store after clear, got %q %v", auth.Token(), err)
	}
}
