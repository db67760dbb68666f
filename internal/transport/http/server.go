package http

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
	"quiz-portal/internal/monitor"
	"quiz-portal/internal/pocketbase"
	"quiz-portal/internal/security"
)

const defaultSessionMaxAge = 7 * 24 * time.Hour

// BackendFactory binds the PocketBase backend to one browser's auth store.
type BackendFactory func(auth *pocketbase.AuthStore) app.Backend

// SnapshotHistory reads recorded leaderboards.
type SnapshotHistory interface {
	History(ctx context.Context, board domain.Board, category string, limit int) ([]domain.LeaderboardSnapshot, error)
}

// QuizCache drops cached quiz content after an edit.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

// Options wires the server to the rest of the portal. QuizCache, History
// and Network are optional.
type Options struct {
	Port            string
	Backend         BackendFactory
	Tokens          app.TokenStore
	Runner          *app.QuizRunner
	Feed            *app.LeaderboardFeed
	QuizCache       QuizCache
	History         SnapshotHistory
	Network         *monitor.NetworkMonitor
	Security        security.Config
	HealthChecks    []HealthCheck
	SessionSecret   string
	SessionMaxAge   time.Duration
	SecureCookie    bool
	PocketBaseURL   string
	UsersCollection string
	Clock           clockwork.Clock
	Logger          *slog.Logger
}

type Server struct {
	echo   *echo.Echo
	opts   Options
	clock  clockwork.Clock
	logger *slog.Logger

	cookies   *sessions.CookieStore
	validator *security.InputValidator
	ws        *WSHandler
	startTime time.Time
}

func NewServer(opts Options) (*Server, error) {
	if opts.Backend == nil || opts.Tokens == nil || opts.Runner == nil || opts.Feed == nil {
		return nil, fmt.Errorf("server: backend, tokens, runner and feed are required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	cookies, err := setupSessionStore(opts)
	if err != nil {
		return nil, err
	}
	s := &Server{
		echo:      e,
		opts:      opts,
		clock:     opts.Clock,
		logger:    opts.Logger,
		cookies:   cookies,
		validator: security.NewInputValidator(opts.Security.Validation),
		ws:        NewWSHandler(opts.Feed, opts.Logger),
		startTime: opts.Clock.Now(),
	}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP lets tests drive the server without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	s.logger.Info("starting quiz portal", "port", s.opts.Port)
	s.echo.Server.ReadTimeout = 15 * time.Second
	if err := s.echo.Start(":" + s.opts.Port); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func setupSessionStore(opts Options) (*sessions.CookieStore, error) {
	secret := []byte(opts.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	maxAge := opts.SessionMaxAge
	if maxAge <= 0 {
		maxAge = defaultSessionMaxAge
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}
