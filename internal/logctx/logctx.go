// Package logctx carries a zerolog logger through context.Context so that
// request and run scoped fields follow a call down the stack.
package logctx

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bagbrowser/bagbrowser/pkg/logging"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the process logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return *logging.L()
}

// WithStr returns a context whose logger has an extra string field.
func WithStr(ctx context.Context, key, value string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Str(key, value).Logger())
}
