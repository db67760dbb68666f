package http

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"quiz-portal/internal/app"
	"quiz-portal/internal/domain"
)

// respond writes the {success, data} envelope, or the error envelope with
// the status the error code maps to.
func respond[T any](c echo.Context, data T, err error) error {
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(200, domain.OK(data))
}

func fail(c echo.Context, err error) error {
	status := domain.HTTPStatus(err)
	logger := loggerOf(c)
	attrs := []any{
		"code", domain.CodeOf(err),
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
		"error", err,
	}
	if status >= 500 {
		logger.ErrorContext(c.Request().Context(), "request failed", attrs...)
	} else {
		logger.InfoContext(c.Request().Context(), "request rejected", attrs...)
	}
	return c.JSON(status, domain.Fail(err))
}

func invalidBody(err error) *domain.Error {
	return &domain.Error{Code: domain.CodeValidation, Message: "Invalid request body", Err: err}
}

// bind decodes the JSON body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil {
			return invalidBody(he.Internal)
		}
		return invalidBody(err)
	}
	return nil
}

// filtersFrom copies the named query parameters into record filters.
// "true" and "false" become booleans and comma lists become IN clauses.
func filtersFrom(c echo.Context, keys ...string) app.Filters {
	filters := app.Filters{}
	for _, key := range keys {
		raw := c.QueryParam(key)
		switch {
		case raw == "":
		case raw == "true" || raw == "false":
			filters[key], _ = strconv.ParseBool(raw)
		case strings.Contains(raw, ","):
			filters[key] = strings.Split(raw, ",")
		default:
			filters[key] = raw
		}
	}
	return filters
}

func intQuery(c echo.Context, key string, fallback int) int {
	if n, err := strconv.Atoi(c.QueryParam(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

// screen rejects free text the input validator flags.
func (s *Server) screen(fields map[string]string) error {
	violations := s.validator.Validate(sortedKeys(fields), fields)
	if len(violations) == 0 {
		return nil
	}
	return domain.Errorf(domain.CodeValidation, "Input rejected: %s", violations[0].Error())
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func loggerOf(c echo.Context) *slog.Logger {
	if l, ok := c.Get(ctxLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
