package util

import (
	"context"

	"github.com/rs/zerolog"
)

// LogFromContext returns the request-scoped logger, falling back to the
// global one when the context carries none.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}
