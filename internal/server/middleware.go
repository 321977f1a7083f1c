package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"signal-recorder/internal/logging"
)

// requestLogger attaches a request-scoped zerolog logger to the context,
// logs each request and counts it in the metrics recorder.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			requestID := res.Header().Get(echo.HeaderXRequestID)
			logger := logging.WithRequestID(s.logger, requestID)
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), logger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := res.Status
			if s.metrics != nil {
				s.metrics.RecordHTTP(route, req.Method, strconv.Itoa(status))
			}

			event := logger.Debug()
			if status >= 500 {
				event = logger.Warn()
			}
			event.
				Str("method", req.Method).
				Str("route", route).
				Str("remote", c.RealIP()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Msg("HTTP request")

			return nil
		}
	}
}
