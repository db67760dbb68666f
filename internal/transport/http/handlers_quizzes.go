package http

import (
	"strings"

	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

type submitRequest struct {
	Answers   map[string]domain.Answer `json:"answers"`
	TimeTaken int                      `json:"timeTaken"`
}

func (s *Server) registerQuizRoutes(g *echo.Group) {
	g.GET("/quizzes", s.handleListQuizzes, requireAuth)
	g.GET("/quizzes/available", s.handleAvailableQuizzes, requireAuth)
	g.GET("/quizzes/:id", s.handleGetQuiz, requireAuth)
	g.GET("/quizzes/:id/questions", s.handleQuizQuestions, requireAuth)
	g.GET("/quizzes/:id/statistics", s.handleQuizStatistics, requireAdmin)
	g.POST("/quizzes/:id/submit", s.handleSubmitQuiz, requireAuth)
	g.POST("/quizzes", s.handleCreateQuiz, requireAdmin)
	g.POST("/quizzes/generate", s.handleGenerateQuiz, requireAdmin)
	g.PATCH("/quizzes/:id", s.handleUpdateQuiz, requireAdmin)
	g.DELETE("/quizzes/:id", s.handleDeleteQuiz, requireAdmin)
}

// handleListQuizzes lists active quizzes; admins may add includeInactive.
func (s *Server) handleListQuizzes(c echo.Context) error {
	p := portalOf(c)
	includeInactive := c.QueryParam("includeInactive") == "true" && p.IsAdmin()
	quizzes, err := p.GetAllQuizzes(c.Request().Context(), includeInactive)
	return respond(c, quizzes, err)
}

func (s *Server) handleAvailableQuizzes(c echo.Context) error {
	quizzes, err := portalOf(c).GetAvailableQuizzes(c.Request().Context())
	return respond(c, quizzes, err)
}

func (s *Server) handleGetQuiz(c echo.Context) error {
	var expand []string
	if raw := c.QueryParam("expand"); raw != "" {
		expand = strings.Split(raw, ",")
	}
	quiz, err := portalOf(c).GetQuizByID(c.Request().Context(), c.Param("id"), expand...)
	return respond(c, quiz, err)
}

func (s *Server) handleQuizQuestions(c echo.Context) error {
	questions, err := portalOf(c).GetQuizQuestions(c.Request().Context(), c.Param("id"))
	return respond(c, questions, err)
}

func (s *Server) handleQuizStatistics(c echo.Context) error {
	stats, err := portalOf(c).GetQuizStatistics(c.Request().Context(), c.Param("id"))
	return respond(c, stats, err)
}

// handleSubmitQuiz scores a one-shot submission and refreshes the boards.
func (s *Server) handleSubmitQuiz(c echo.Context) error {
	var req submitRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	sub, err := portalOf(c).SubmitQuiz(c.Request().Context(), c.Param("id"), req.Answers, req.TimeTaken)
	if err == nil {
		s.opts.Feed.Trigger()
	}
	return respond(c, sub, err)
}

func (s *Server) handleCreateQuiz(c echo.Context) error {
	var quiz domain.Quiz
	if err := bind(c, &quiz); err != nil {
		return fail(c, err)
	}
	if err := s.screen(map[string]string{"title": quiz.Title, "description": quiz.Description, "category": quiz.Category}); err != nil {
		return fail(c, err)
	}
	created, err := portalOf(c).CreateQuiz(c.Request().Context(), quiz)
	return respond(c, created, err)
}

func (s *Server) handleGenerateQuiz(c echo.Context) error {
	var cfg app.QuizConfig
	if err := bind(c, &cfg); err != nil {
		return fail(c, err)
	}
	if err := s.screen(map[string]string{"title": cfg.Title, "description": cfg.Description}); err != nil {
		return fail(c, err)
	}
	quiz, err := portalOf(c).GenerateDynamicQuiz(c.Request().Context(), cfg)
	return respond(c, quiz, err)
}

func (s *Server) handleUpdateQuiz(c echo.Context) error {
	var fields app.Fields
	if err := bind(c, &fields); err != nil {
		return fail(c, err)
	}
	if err := s.screen(stringFields(fields)); err != nil {
		return fail(c, err)
	}
	id := c.Param("id")
	quiz, err := portalOf(c).UpdateQuiz(c.Request().Context(), id, fields)
	if err == nil {
		s.invalidateQuiz(c, id)
	}
	return respond(c, quiz, err)
}

func (s *Server) handleDeleteQuiz(c echo.Context) error {
	id := c.Param("id")
	err := portalOf(c).DeleteQuiz(c.Request().Context(), id)
	if err == nil {
		s.invalidateQuiz(c, id)
	}
	return respond(c, err == nil, err)
}

func (s *Server) invalidateQuiz(c echo.Context, id string) {
	if s.opts.QuizCache == nil {
		return
	}
	if err := s.opts.QuizCache.Invalidate(c.Request().Context(), id); err != nil {
		loggerOf(c).WarnContext(c.Request().Context(), "invalidate cached quiz", "quiz", id, "error", err)
	}
}
