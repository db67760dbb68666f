package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quiz-portal/internal/logging"
	"quiz-portal/internal/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	ctxLogger       = "logger"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.requestIDMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	s.echo.Use(metricsMiddleware)

	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/api/config", s.handleConfig)
	s.echo.GET("/ws/leaderboard", echo.WrapHandler(http.HandlerFunc(s.ws.ServeWS)))

	api := s.echo.Group("/api", newRateLimiter(s.opts.Security.RateLimit), s.withSession)
	s.registerAuthRoutes(api)
	s.registerQuestionRoutes(api)
	s.registerQuizRoutes(api)
	s.registerSubmissionRoutes(api)
	s.registerUserRoutes(api)
	s.registerDashboardRoutes(api)
	s.registerLeaderboardRoutes(api)
	s.registerQuizSessionRoutes(api)
	s.registerNavigationRoutes(api)
	s.registerAdminToolRoutes(api)
}

// requestIDMiddleware tags the request context so every log line of the
// request carries request_id.
func (s *Server) requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(headerRequestID, id)
		ctx := logging.WithRequestID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(ctxLogger, s.logger)
		return next(c)
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	})
}

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
		return err
	}
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"pocketbaseUrl": s.opts.PocketBaseURL,
	})
}
