package http

import (
	"strings"

	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Name            string `json:"name"`
}

// meResponse is what the shell needs to route a signed-in user.
type meResponse struct {
	User                 *domain.User    `json:"user"`
	DisplayName          string          `json:"displayName"`
	Interfaces           []app.Interface `json:"availableInterfaces"`
	ShowRoleSelection    bool            `json:"showRoleSelection"`
	InitialRoute         string          `json:"initialRoute"`
	IsAdmin              bool            `json:"isAdmin"`
	IsAuthenticated      bool            `json:"isAuthenticated"`
	DefaultInterface     app.Interface   `json:"defaultInterface"`
	CurrentInterfaceName string          `json:"currentInterfaceName"`
}

func (s *Server) registerAuthRoutes(g *echo.Group) {
	g.POST("/auth/login", s.handleLogin)
	g.POST("/auth/register", s.handleRegister)
	g.POST("/auth/logout", s.handleLogout)
	g.POST("/auth/refresh", s.handleRefresh)
	g.GET("/auth/me", s.handleMe)
	g.PATCH("/auth/profile", s.handleUpdateProfile, requireAuth)
	g.GET("/auth/session", s.handleSessionStatus)
}

type sessionStatus struct {
	RemainingSeconds int  `json:"remainingSeconds"`
	ShouldWarn       bool `json:"shouldWarn"`
}

// handleSessionStatus tells the shell when to show the timeout warning,
// counting idle time up to this request.
func (s *Server) handleSessionStatus(c echo.Context) error {
	sess := sessionOf(c)
	now := s.clock.Now()
	cfg := s.opts.Security.Session
	return respond(c, sessionStatus{
		RemainingSeconds: int(cfg.Remaining(sess.started, sess.lastActive, now).Seconds()),
		ShouldWarn:       cfg.ShouldWarn(sess.started, sess.lastActive, now),
	}, nil)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	user, err := portalOf(c).Login(c.Request().Context(), req.Email, req.Password)
	return respond(c, user, err)
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if err := s.screen(map[string]string{"name": req.Name, "email": req.Email}); err != nil {
		return fail(c, err)
	}
	user, err := portalOf(c).Register(c.Request().Context(), req.Email, req.Password, req.PasswordConfirm, req.Name)
	return respond(c, user, err)
}

// handleLogout also forgets the quiz in progress and the navigation state.
func (s *Server) handleLogout(c echo.Context) error {
	sess := sessionOf(c)
	ctx := c.Request().Context()
	s.opts.Runner.Abandon(ctx, sess.id)
	if err := sess.clearNavigation(c); err != nil {
		s.logger.WarnContext(ctx, "clear navigation", "error", err)
	}
	return respond(c, sess.portal.Logout(ctx), nil)
}

func (s *Server) handleRefresh(c echo.Context) error {
	return respond(c, portalOf(c).RefreshAuth(c.Request().Context()), nil)
}

func (s *Server) handleMe(c echo.Context) error {
	sess := sessionOf(c)
	u := sess.portal.CurrentUser()
	nav := sess.navigation()
	if nav.Active == "" {
		nav.SetInitial(u, "")
	}
	return respond(c, meResponse{
		User:                 u,
		DisplayName:          app.UserDisplayName(u),
		Interfaces:           app.AvailableInterfaces(u),
		ShowRoleSelection:    app.ShouldShowRoleSelection(u),
		InitialRoute:         app.InitialRoute(u),
		IsAdmin:              sess.portal.IsAdmin(),
		IsAuthenticated:      sess.portal.IsAuthenticated(),
		DefaultInterface:     app.DefaultInterface(u),
		CurrentInterfaceName: nav.CurrentInterfaceName(),
	}, nil)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var fields app.Fields
	if err := bind(c, &fields); err != nil {
		return fail(c, err)
	}
	if err := s.screen(stringFields(fields)); err != nil {
		return fail(c, err)
	}
	user, err := portalOf(c).UpdateProfile(c.Request().Context(), fields)
	return respond(c, user, err)
}

// stringFields picks the string values of a partial record for screening.
// Passwords are never screened.
func stringFields(fields app.Fields) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "password") || strings.HasPrefix(k, "oldPassword") {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
