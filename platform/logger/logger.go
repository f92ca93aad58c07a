// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// DeploymentKey is the context key for the deployment (stack) being reconciled
	DeploymentKey contextKey = "deployment"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and deployment from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if deployment, ok := ctx.Value(DeploymentKey).(string); ok && deployment != "" {
		newLogger = newLogger.WithDeployment(deployment)
	}

	return newLogger
}

// WithDeployment returns a logger scoped to one deployment (stack).
func (l *Logger) WithDeployment(stackName string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("deployment", stackName)),
	}
}

// WithRecord returns a logger scoped to one tracked record.
func (l *Logger) WithRecord(parameterKey string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("parameter_key", parameterKey)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// AdapterError logs a failed call to an external collaborator.
func (l *Logger) AdapterError(adapter, operation string, err error) {
	l.Error("adapter_error",
		slog.String("adapter", adapter),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// TransitionSkipped logs a benign no-op where the record label did not match
// the expected precondition of a lifecycle transition.
func (l *Logger) TransitionSkipped(parameterKey, have, want string) {
	l.Info("transition_skipped",
		slog.String("parameter_key", parameterKey),
		slog.String("label", have),
		slog.String("expected", want),
	)
}

// Transition logs a completed lifecycle transition on a tracked record.
func (l *Logger) Transition(parameterKey, from, to string) {
	l.Info("transition",
		slog.String("parameter_key", parameterKey),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
