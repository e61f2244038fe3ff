package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With attaches a child logger carrying the given fields to the context.
// Handlers and middleware use it to accumulate request-scoped attributes.
func With(ctx context.Context, fields ...any) context.Context {
	child := From(ctx).With(fields...)
	return context.WithValue(ctx, ctxKey{}, child)
}

// From returns the context logger, falling back to the process logger.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
