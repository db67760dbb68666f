package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
)

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (s *Server) registerUserRoutes(g *echo.Group) {
	g.GET("/users", s.handleListUsers, requireAdmin)
	g.POST("/users", s.handleCreateUser, requireAdmin)
	g.PATCH("/users/:id", s.handleUpdateUser, requireAdmin)
	g.DELETE("/users/:id", s.handleDeleteUser, requireAdmin)
	g.POST("/users/:id/reset-password", s.handleResetPassword, requireAdmin)
}

func (s *Server) handleListUsers(c echo.Context) error {
	users, err := portalOf(c).GetAllUsers(c.Request().Context(), filtersFrom(c, "role", "verified"))
	return respond(c, users, err)
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var u app.NewUser
	if err := bind(c, &u); err != nil {
		return fail(c, err)
	}
	if err := s.screen(map[string]string{"email": u.Email, "username": u.Username, "name": u.Name}); err != nil {
		return fail(c, err)
	}
	created, err := portalOf(c).CreateUser(c.Request().Context(), u)
	return respond(c, created, err)
}

func (s *Server) handleUpdateUser(c echo.Context) error {
	var fields app.Fields
	if err := bind(c, &fields); err != nil {
		return fail(c, err)
	}
	if err := s.screen(stringFields(fields)); err != nil {
		return fail(c, err)
	}
	u, err := portalOf(c).UpdateUser(c.Request().Context(), c.Param("id"), fields)
	return respond(c, u, err)
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	err := portalOf(c).DeleteUser(c.Request().Context(), c.Param("id"))
	return respond(c, err == nil, err)
}

func (s *Server) handleResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ok, err := portalOf(c).ResetUserPassword(c.Request().Context(), c.Param("id"), req.Password)
	return respond(c, ok, err)
}
