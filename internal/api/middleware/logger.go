package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/util"
)

// RequestLogger attaches a request-scoped zerolog logger to the context and
// emits one line per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			l := log.With().
				Str("request_id", requestID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Logger()

			ctx := util.WithLogger(c.Request().Context(), l)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			l.Info().
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("Request handled")

			return err
		}
	}
}
