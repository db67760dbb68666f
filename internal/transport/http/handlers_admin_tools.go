package http

import (
	"github.com/labstack/echo/v4"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/monitor"
	"quiz-portal/internal/security"
)

type securityResponse struct {
	Config   security.Config            `json:"config"`
	Statuses map[string]security.Status `json:"statuses"`
}

type validateInputRequest struct {
	Fields map[string]string `json:"fields"`
}

type validateInputResponse struct {
	Valid      bool                 `json:"valid"`
	Violations []security.Violation `json:"violations"`
}

type scoreRequest struct {
	Metrics    monitor.PageMetrics `json:"metrics"`
	BundleSize int64               `json:"bundleSize"`
}

type scoreResponse struct {
	Score           int           `json:"score"`
	BundleGrade     monitor.Level `json:"bundleGrade"`
	BundleSize      string        `json:"bundleSize"`
	Recommendations []string      `json:"recommendations"`
}

type productionResponse struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type productionRequest struct {
	Config  monitor.ProductionConfig   `json:"config"`
	Metrics *monitor.ProductionMetrics `json:"metrics,omitempty"`
}

func (s *Server) registerAdminToolRoutes(g *echo.Group) {
	a := g.Group("/admin", requireAdmin)
	a.GET("/network", s.handleNetworkStatus)
	a.GET("/security", s.handleSecurityStatus)
	a.POST("/security/validate", s.handleValidateInput)
	a.GET("/performance/presets/:name", s.handlePerformancePreset)
	a.POST("/performance/score", s.handlePerformanceScore)
	a.POST("/production/validate", s.handleValidateProduction)
}

func (s *Server) handleNetworkStatus(c echo.Context) error {
	if s.opts.Network == nil {
		return respond(c, monitor.NetworkStatus{Online: true}, nil)
	}
	return respond(c, s.opts.Network.Status(), nil)
}

func (s *Server) handleSecurityStatus(c echo.Context) error {
	return respond(c, securityResponse{Config: s.opts.Security, Statuses: s.opts.Security.Statuses()}, nil)
}

func (s *Server) handleValidateInput(c echo.Context) error {
	var req validateInputRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	violations := s.validator.Validate(sortedKeys(req.Fields), req.Fields)
	if violations == nil {
		violations = []security.Violation{}
	}
	return respond(c, validateInputResponse{Valid: len(violations) == 0, Violations: violations}, nil)
}

func (s *Server) handlePerformancePreset(c echo.Context) error {
	cfg, ok := monitor.PerformancePreset(c.Param("name"))
	if !ok {
		return fail(c, domain.Errorf(domain.CodeValidation, "Unknown performance preset %q", c.Param("name")))
	}
	return respond(c, cfg, nil)
}

func (s *Server) handlePerformanceScore(c echo.Context) error {
	var req scoreRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	recs := monitor.PerformanceRecommendations(req.Metrics, req.BundleSize)
	if recs == nil {
		recs = []string{}
	}
	return respond(c, scoreResponse{
		Score:           monitor.CalculatePerformanceScore(req.Metrics),
		BundleGrade:     monitor.BundleSizeThresholds.Grade(req.BundleSize),
		BundleSize:      monitor.FormatBytes(req.BundleSize),
		Recommendations: recs,
	}, nil)
}

func (s *Server) handleValidateProduction(c echo.Context) error {
	var req productionRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	errs := monitor.ValidateProductionConfig(req.Config)
	if errs == nil {
		errs = []string{}
	}
	out := productionResponse{Valid: len(errs) == 0, Errors: errs}
	if req.Metrics != nil {
		out.Recommendations = monitor.ProductionRecommendations(*req.Metrics)
	}
	return respond(c, out, nil)
}
