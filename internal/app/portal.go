package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

// Collection names.
const (
	CollectionUsers       = "users"
	CollectionQuestions   = "questions"
	CollectionQuizzes     = "quizzes"
	CollectionSubmissions = "submissions"
)

// Backend is the subset of the PocketBase client the portal relies on.
type Backend interface {
	GetOne(ctx context.Context, collection, id string, q pocketbase.Query, out any) error
	GetList(ctx context.Context, collection string, page, perPage int, q pocketbase.Query, out any) (pocketbase.ListMeta, error)
	GetFullList(ctx context.Context, collection string, q pocketbase.Query, out any) error
	Create(ctx context.Context, collection string, body, out any) error
	Update(ctx context.Context, collection, id string, body, out any) error
	Delete(ctx context.Context, collection, id string) error
	AuthWithPassword(ctx context.Context, collection, identity, password string) (pocketbase.AuthResponse, error)
	AuthRefresh(ctx context.Context, collection string) (pocketbase.AuthResponse, error)
	AuthStore() *pocketbase.AuthStore
}

// AuthPersister keeps the exported auth store between requests.
type AuthPersister interface {
	SaveAuth(ctx context.Context, blob string) error
	ClearAuth(ctx context.Context) error
}

// Fields is a partial record used for updates.
type Fields map[string]any

// Portal is the data-access facade the dashboards use. Every operation
// returns either data or a *domain.Error carrying a message and a code.
type Portal struct {
	backend Backend
	persist AuthPersister
	clock   clockwork.Clock
	logger  *slog.Logger
	users   string
}

// PortalOption configures a Portal.
type PortalOption func(*Portal)

// WithAuthPersister stores the auth export after login and clears it on logout.
func WithAuthPersister(p AuthPersister) PortalOption {
	return func(s *Portal) { s.persist = p }
}

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) PortalOption {
	return func(s *Portal) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PortalOption {
	return func(s *Portal) { s.logger = l }
}

// WithUsersCollection overrides the auth collection name.
func WithUsersCollection(name string) PortalOption {
	return func(s *Portal) {
		if name != "" {
			s.users = name
		}
	}
}

func NewPortal(backend Backend, opts ...PortalOption) *Portal {
	p := &Portal{
		backend: backend,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		users:   CollectionUsers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Clock returns the clock the portal stamps records with.
func (p *Portal) Clock() clockwork.Clock { return p.clock }

// fail translates err into a coded error. The PocketBase message wins over
// the transport text; an open circuit breaker becomes SERVICE_UNAVAILABLE.
func fail(err error, code string) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	out := &domain.Error{Code: code, Message: "Unknown error", Err: err}
	if errors.Is(err, pocketbase.ErrUnavailable) {
		out.Code = domain.CodeServiceUnavailable
		out.Message = err.Error()
		return out
	}
	var re *pocketbase.ResponseError
	if errors.As(err, &re) {
		out.Status = re.Status
	}
	if err != nil && err.Error() != "" {
		out.Message = err.Error()
	}
	return out
}

func invalid(code, message string) *domain.Error {
	return domain.NewError(code, message)
}
