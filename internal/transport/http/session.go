package http

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

// Session keys
const (
	sessionName       = "quiz-portal-session"
	sessionKeyID      = "sid"
	sessionKeyStarted = "started"
	sessionKeyLast    = "last"
	sessionKeyNav     = "nav"

	ctxSession = "session"

	// sessionStatusPath is polled by the shell and does not count as activity.
	sessionStatusPath = "/api/auth/session"
)

// browserSession is the per-request view of one browser: its cookie, the
// id its server-side state is keyed by, and a portal bound to its auth.
type browserSession struct {
	id     string
	cookie *sessions.Session
	portal *app.Portal

	// started and lastActive are the stamps before this request.
	started    time.Time
	lastActive time.Time
}

// withSession restores the browser's PocketBase auth, expiring it when the
// security preset's session timeout has passed.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cookie, _ := s.cookies.Get(c.Request(), sessionName)
		now := s.clock.Now()

		sid, _ := cookie.Values[sessionKeyID].(string)
		if sid == "" {
			sid = uuid.NewString()
			cookie.Values[sessionKeyID] = sid
			cookie.Values[sessionKeyStarted] = now.Unix()
		}
		started := unixValue(cookie, sessionKeyStarted, now)
		last := unixValue(cookie, sessionKeyLast, now)
		if s.opts.Security.Session.Expired(started, last, now) {
			s.logger.InfoContext(ctx, "session expired", "session", sid)
			if err := s.opts.Tokens.DeleteAuth(ctx, sid); err != nil {
				s.logger.WarnContext(ctx, "clear expired auth", "error", err)
			}
			s.opts.Runner.Abandon(ctx, sid)
			delete(cookie.Values, sessionKeyNav)
			cookie.Values[sessionKeyStarted] = now.Unix()
			started, last = now, now
		}
		if c.Path() != sessionStatusPath {
			cookie.Values[sessionKeyLast] = now.Unix()
		}
		if err := cookie.Save(c.Request(), c.Response()); err != nil {
			s.logger.WarnContext(ctx, "save session cookie", "error", err)
		}

		auth, err := app.RestoreAuth(ctx, s.opts.Tokens, sid)
		if err != nil {
			return fail(c, &domain.Error{Code: domain.CodeServiceUnavailable, Message: "Session store unavailable", Err: err})
		}
		portal := app.NewPortal(s.opts.Backend(auth),
			app.WithAuthPersister(app.PersistTo(s.opts.Tokens, sid)),
			app.WithClock(s.clock),
			app.WithLogger(s.logger),
			app.WithUsersCollection(s.opts.UsersCollection),
		)
		c.Set(ctxSession, &browserSession{
			id:         sid,
			cookie:     cookie,
			portal:     portal,
			started:    started,
			lastActive: last,
		})
		return next(c)
	}
}

func sessionOf(c echo.Context) *browserSession {
	return c.Get(ctxSession).(*browserSession)
}

func portalOf(c echo.Context) *app.Portal {
	return sessionOf(c).portal
}

// requireAuth answers AUTH_REQUIRED unless the session holds a valid token.
func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !portalOf(c).IsAuthenticated() {
			return fail(c, domain.NewError(domain.CodeAuthRequired, domain.ErrNotAuthenticated.Error()))
		}
		return next(c)
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return requireAuth(func(c echo.Context) error {
		if !portalOf(c).IsAdmin() {
			return fail(c, domain.NewError(domain.CodeAccessDenied, "Access denied: Admin interface not available"))
		}
		return next(c)
	})
}

func unixValue(cookie *sessions.Session, key string, fallback time.Time) time.Time {
	if v, ok := cookie.Values[key].(int64); ok {
		return time.Unix(v, 0)
	}
	return fallback
}

// navigation decodes the navigation state kept in the cookie.
func (b *browserSession) navigation() *app.Navigation {
	nav := &app.Navigation{}
	if raw, ok := b.cookie.Values[sessionKeyNav].(string); ok {
		_ = json.Unmarshal([]byte(raw), nav)
	}
	return nav
}

// saveNavigation must run before the response body is written.
func (b *browserSession) saveNavigation(c echo.Context, nav *app.Navigation) error {
	raw, err := json.Marshal(nav)
	if err != nil {
		return err
	}
	b.cookie.Values[sessionKeyNav] = string(raw)
	return b.cookie.Save(c.Request(), c.Response())
}

// clearNavigation drops navigation state on logout.
func (b *browserSession) clearNavigation(c echo.Context) error {
	delete(b.cookie.Values, sessionKeyNav)
	return b.cookie.Save(c.Request(), c.Response())
}
