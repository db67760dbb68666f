package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/domain"
)

const defaultSubmissionLimit = 10

func (s *Server) registerSubmissionRoutes(g *echo.Group) {
	g.GET("/submissions", s.handleListSubmissions, requireAdmin)
	g.GET("/submissions/:id", s.handleGetSubmission, requireAuth)
	g.GET("/users/:id/submissions", s.handleUserSubmissions, requireAuth)
}

func (s *Server) handleListSubmissions(c echo.Context) error {
	subs, err := portalOf(c).GetAllSubmissions(c.Request().Context(), filtersFrom(c, "user", "quiz", "status"))
	return respond(c, subs, err)
}

func (s *Server) handleGetSubmission(c echo.Context) error {
	sub, err := portalOf(c).GetSubmissionByID(c.Request().Context(), c.Param("id"))
	return respond(c, sub, err)
}

// handleUserSubmissions lets students read only their own history.
func (s *Server) handleUserSubmissions(c echo.Context) error {
	p := portalOf(c)
	id := c.Param("id")
	if id == "me" {
		id = p.CurrentUser().ID
	}
	if id != p.CurrentUser().ID && !p.IsAdmin() {
		return fail(c, domain.NewError(domain.CodeAccessDenied, "Access denied: submissions belong to another user"))
	}
	subs, err := p.GetUserSubmissions(c.Request().Context(), id, intQuery(c, "limit", defaultSubmissionLimit))
	return respond(c, subs, err)
}
