package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"quiz-portal/internal/domain"
	"quiz-portal/internal/metrics"
	"quiz-portal/internal/security"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter enforces the security preset's request budget per client
// IP. A disabled limit passes everything through.
func newRateLimiter(cfg security.RateLimitConfig) echo.MiddlewareFunc {
	limit, burst := cfg.Limit()
	if burst == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			metrics.HTTPRateLimited.Inc()
			c.Response().Header().Set("Retry-After", retryAfter(cfg))
			return c.JSON(http.StatusTooManyRequests, domain.Result[any]{
				Error: "Rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		},
	})
}

// retryAfter is the Retry-After header value in whole seconds.
func retryAfter(cfg security.RateLimitConfig) string {
	return strconv.Itoa(max(1, int(cfg.RetryDelay.Seconds())))
}
