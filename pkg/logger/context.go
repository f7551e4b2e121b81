package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// With returns ctx carrying the request logger extended with fields.
func With(ctx context.Context, fields ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, From(ctx).With(fields...))
}

// From returns the request logger carried by ctx, or the process logger.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
