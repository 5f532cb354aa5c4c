package log

import (
	"context"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger stored by NewContext, or a discarding one
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return Discard()
}

// CommandContext enriches the context logger with the running command
func CommandContext(ctx context.Context, command string) context.Context {
	return NewContext(ctx, FromContext(ctx).With(FieldCommand, command))
}
