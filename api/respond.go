package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"mes.GO/core/errs"
	"mes.GO/core/metrics"
)

// Fail writes err with the status its kind maps to.
func Fail(c echo.Context, err error) error {
	return c.JSON(errs.HTTPStatus(err), echo.Map{"error": err.Error()})
}

// BadRequest is for input the handler could not parse.
func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// IDParam parses a positive numeric path parameter.
func IDParam(c echo.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// RequestMetrics records every request on the Prometheus counters and sets
// X-Request-Duration-ms.
func RequestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Response().Before(func() {
				c.Response().Header().Set("X-Request-Duration-ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
			})
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RecordAPIRequest(c.Request().Method, path, c.Response().Status, elapsed.Seconds())
			return nil
		}
	}
}
