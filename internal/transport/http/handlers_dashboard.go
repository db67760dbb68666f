package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

const defaultHistoryLimit = 10

type rankResponse struct {
	Rank   int  `json:"rank"`
	Ranked bool `json:"ranked"`
}

func (s *Server) registerDashboardRoutes(g *echo.Group) {
	g.GET("/dashboard/student", s.handleStudentDashboard, requireAuth)
	g.GET("/dashboard/admin", s.handleAdminDashboard, requireAdmin)
}

func (s *Server) registerLeaderboardRoutes(g *echo.Group) {
	g.GET("/leaderboards/:board", s.handleLeaderboard, requireAuth)
	g.GET("/leaderboards/:board/history", s.handleLeaderboardHistory, requireAuth)
	g.GET("/leaderboards/category/:category", s.handleCategoryLeaderboard, requireAuth)
	g.GET("/rankings/me", s.handleMyRank, requireAuth)
}

// rankingsOf ranks with the signed-in user's view of the submissions.
func (s *Server) rankingsOf(c echo.Context) *app.Rankings {
	return app.NewRankings(portalOf(c), s.clock)
}

func (s *Server) handleStudentDashboard(c echo.Context) error {
	u := portalOf(c).CurrentUser()
	dash, err := s.rankingsOf(c).StudentDashboard(c.Request().Context(), u.ID)
	return respond(c, dash, err)
}

func (s *Server) handleAdminDashboard(c echo.Context) error {
	dash, err := portalOf(c).AdminDashboard(c.Request().Context())
	return respond(c, dash, err)
}

// handleLeaderboard serves the feed's latest snapshot, computing the board
// on request until the first refresh has run.
func (s *Server) handleLeaderboard(c echo.Context) error {
	board := domain.Board(c.Param("board"))
	if snap, ok := s.opts.Feed.Snapshot(board); ok {
		return respond(c, snap, nil)
	}
	snap, err := s.rankingsOf(c).Board(c.Request().Context(), board)
	return respond(c, snap, err)
}

func (s *Server) handleLeaderboardHistory(c echo.Context) error {
	if s.opts.History == nil {
		return fail(c, domain.NewError(domain.CodeServiceUnavailable, "Leaderboard history is not recorded"))
	}
	history, err := s.opts.History.History(c.Request().Context(),
		domain.Board(c.Param("board")), c.QueryParam("category"), intQuery(c, "limit", defaultHistoryLimit))
	if err != nil {
		err = &domain.Error{Code: domain.CodeServiceUnavailable, Message: "Failed to read leaderboard history", Err: err}
	}
	return respond(c, history, err)
}

func (s *Server) handleCategoryLeaderboard(c echo.Context) error {
	snap, err := s.rankingsOf(c).Category(c.Request().Context(), c.Param("category"))
	return respond(c, snap, err)
}

// handleMyRank prefers the feed's overall board over recomputing it.
func (s *Server) handleMyRank(c echo.Context) error {
	userID := portalOf(c).CurrentUser().ID
	if snap, ok := s.opts.Feed.Snapshot(domain.BoardOverall); ok {
		pos, ranked := app.RankOf(snap.Rows, userID)
		return respond(c, rankResponse{Rank: pos, Ranked: ranked}, nil)
	}
	pos, ranked, err := s.rankingsOf(c).UserRank(c.Request().Context(), userID)
	return respond(c, rankResponse{Rank: pos, Ranked: ranked}, err)
}
