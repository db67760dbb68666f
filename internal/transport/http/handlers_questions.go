package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

var questionFilters = []string{"category", "difficulty", "question_type"}

func (s *Server) registerQuestionRoutes(g *echo.Group) {
	g.GET("/questions", s.handleListQuestions, requireAuth)
	g.GET("/questions/search", s.handleSearchQuestions, requireAuth)
	g.GET("/questions/:id", s.handleGetQuestion, requireAuth)
	g.POST("/questions", s.handleCreateQuestion, requireAdmin)
	g.PATCH("/questions/:id", s.handleUpdateQuestion, requireAdmin)
	g.DELETE("/questions/:id", s.handleDeleteQuestion, requireAdmin)
}

func (s *Server) handleListQuestions(c echo.Context) error {
	questions, err := portalOf(c).GetAllQuestions(c.Request().Context(), filtersFrom(c, questionFilters...))
	return respond(c, questions, err)
}

func (s *Server) handleSearchQuestions(c echo.Context) error {
	query := c.QueryParam("q")
	if err := s.screen(map[string]string{"q": query}); err != nil {
		return fail(c, err)
	}
	questions, err := portalOf(c).SearchQuestions(c.Request().Context(), query, filtersFrom(c, questionFilters...))
	return respond(c, questions, err)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	q, err := portalOf(c).GetQuestionByID(c.Request().Context(), c.Param("id"))
	return respond(c, q, err)
}

func (s *Server) handleCreateQuestion(c echo.Context) error {
	var q domain.Question
	if err := bind(c, &q); err != nil {
		return fail(c, err)
	}
	if err := s.screen(map[string]string{"question": q.Question, "explanation": q.Explanation}); err != nil {
		return fail(c, err)
	}
	created, err := portalOf(c).CreateQuestion(c.Request().Context(), q)
	return respond(c, created, err)
}

func (s *Server) handleUpdateQuestion(c echo.Context) error {
	var fields app.Fields
	if err := bind(c, &fields); err != nil {
		return fail(c, err)
	}
	if err := s.screen(stringFields(fields)); err != nil {
		return fail(c, err)
	}
	q, err := portalOf(c).UpdateQuestion(c.Request().Context(), c.Param("id"), fields)
	return respond(c, q, err)
}

func (s *Server) handleDeleteQuestion(c echo.Context) error {
	err := portalOf(c).DeleteQuestion(c.Request().Context(), c.Param("id"))
	return respond(c, err == nil, err)
}
