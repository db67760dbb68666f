package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

type startQuizRequest struct {
	QuizID string `json:"quizId"`
}

type answerRequest struct {
	Answer domain.Answer `json:"answer"`
}

// Quiz taking is keyed by the browser session, so one attempt per browser.
func (s *Server) registerQuizSessionRoutes(g *echo.Group) {
	q := g.Group("/session/quiz", requireAuth)
	q.POST("", s.handleStartQuiz)
	q.GET("", s.handleQuizView)
	q.POST("/next", s.handleQuizStep(func(qs *app.QuizSession) { qs.Next() }))
	q.POST("/previous", s.handleQuizStep(func(qs *app.QuizSession) { qs.Previous() }))
	q.PUT("/answers/:questionId", s.handleSaveAnswer)
	q.POST("/flag/:questionId", s.handleFlagQuestion)
	q.POST("/submit", s.handleSubmitSession)
	q.DELETE("", s.handleAbandonQuiz)
}

func (s *Server) handleStartQuiz(c echo.Context) error {
	var req startQuizRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	qs, err := s.opts.Runner.Start(c.Request().Context(), sessionOf(c).id, req.QuizID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, qs.View(), nil)
}

func (s *Server) handleQuizView(c echo.Context) error {
	qs, err := s.opts.Runner.Session(c.Request().Context(), sessionOf(c).id)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, qs.View(), nil)
}

func (s *Server) handleQuizStep(step func(*app.QuizSession)) echo.HandlerFunc {
	return func(c echo.Context) error {
		qs, err := s.opts.Runner.Update(c.Request().Context(), sessionOf(c).id, step)
		if err != nil {
			return fail(c, err)
		}
		return respond(c, qs.View(), nil)
	}
}

func (s *Server) handleSaveAnswer(c echo.Context) error {
	var req answerRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	qs, err := s.opts.Runner.SaveAnswer(c.Request().Context(), sessionOf(c).id, c.Param("questionId"), req.Answer)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, qs.View(), nil)
}

func (s *Server) handleFlagQuestion(c echo.Context) error {
	id := c.Param("questionId")
	return s.handleQuizStep(func(qs *app.QuizSession) { qs.Flag(id) })(c)
}

func (s *Server) handleSubmitSession(c echo.Context) error {
	sess := sessionOf(c)
	sub, err := s.opts.Runner.Submit(c.Request().Context(), sess.id, sess.portal)
	if err == nil {
		s.opts.Feed.Trigger()
	}
	return respond(c, sub, err)
}

func (s *Server) handleAbandonQuiz(c echo.Context) error {
	s.opts.Runner.Abandon(c.Request().Context(), sessionOf(c).id)
	return respond(c, true, nil)
}
