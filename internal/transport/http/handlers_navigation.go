package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
)

type switchRequest struct {
	Interface app.Interface `json:"interface"`
}

type visitRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type navigationResponse struct {
	*app.Navigation
	CurrentInterfaceName string                 `json:"currentInterfaceName"`
	Restorable           *app.NavigationContext `json:"restorableContext,omitempty"`
}

func (s *Server) registerNavigationRoutes(g *echo.Group) {
	g.GET("/navigation", s.handleNavigation, requireAuth)
	g.POST("/navigation/switch", s.handleSwitchInterface, requireAuth)
	g.POST("/navigation/visit", s.handleVisit, requireAuth)
}

// currentNavigation loads the cookie state, falling back to the default
// interface when none was saved or the saved one is no longer allowed.
func currentNavigation(c echo.Context) *app.Navigation {
	sess := sessionOf(c)
	nav := sess.navigation()
	nav.SetInitial(sess.portal.CurrentUser(), nav.Active)
	return nav
}

func (s *Server) navigationResponse(nav *app.Navigation) navigationResponse {
	out := navigationResponse{Navigation: nav, CurrentInterfaceName: nav.CurrentInterfaceName()}
	if ctx, ok := nav.RestoreContext(s.clock.Now()); ok {
		out.Restorable = &ctx
	}
	return out
}

func (s *Server) handleNavigation(c echo.Context) error {
	return respond(c, s.navigationResponse(currentNavigation(c)), nil)
}

func (s *Server) handleSwitchInterface(c echo.Context) error {
	var req switchRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	nav := currentNavigation(c)
	if _, err := nav.Switch(portalOf(c).CurrentUser(), req.Interface, s.clock.Now()); err != nil {
		return fail(c, err)
	}
	if err := sessionOf(c).saveNavigation(c, nav); err != nil {
		return fail(c, err)
	}
	return respond(c, s.navigationResponse(nav), nil)
}

func (s *Server) handleVisit(c echo.Context) error {
	var req visitRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	nav := currentNavigation(c)
	nav.Visit(req.Path, req.Name, s.clock.Now())
	if err := sessionOf(c).saveNavigation(c, nav); err != nil {
		return fail(c, err)
	}
	return respond(c, s.navigationResponse(nav), nil)
}
