package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "RegimeLab/pkg/logger"
)

// RequestRecorder receives one observation per finished request.
type RequestRecorder interface {
	RecordHTTPRequest(route, method string, status int, seconds float64)
}

// Metrics records request count and latency under the templated route to keep label cardinality low.
// 5xx responses are logged as errors and requests slower than slowThreshold as warnings.
func Metrics(rec RequestRecorder, l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := routeLabel(c)
			method := c.Request().Method
			status := c.Response().Status
			elapsed := time.Since(start)
			rec.RecordHTTPRequest(route, method, status, elapsed.Seconds())

			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", elapsed),
				applogger.Int64("bytes", c.Response().Size),
			}
			switch {
			case status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}

// routeLabel prefers the registered route template over the raw path.
func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
