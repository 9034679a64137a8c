// Package logging centralizes log/slog setup and the context-scoped
// logger helpers every component pulls a *slog.Logger from.
//
// Grounded on internal/agent/runtime_context.go's context.WithValue
// injection pattern (there: session/runtime-options/model overrides in
// context; here: the same mechanism carries a *slog.Logger), and on the
// teacher's go.mod-level commitment to log/slog with no other logging
// library introduced anywhere in the tree.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type loggerKey struct{}

// Setup builds the process-wide default logger: JSON handler at the
// given level, written to stderr, installed as slog.Default(). Call
// once from cmd/ at startup.
func Setup(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ForComponent returns the default logger scoped with a "component"
// attribute, mirroring the teacher's `slog.Default().With("component",
// ...)` convention used at the top of nearly every package.
func ForComponent(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// WithLogger attaches logger to ctx, scoped to one session/task/request.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to ctx, or the default logger
// if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// ForSession returns a logger scoped to one session and task, the
// pairing nearly every log line in the agent loop / flow / task
// packages needs for correlation.
func ForSession(ctx context.Context, sessionID, taskID string) *slog.Logger {
	return FromContext(ctx).With("session_id", sessionID, "task_id", taskID)
}
