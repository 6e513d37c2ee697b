package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent names the subsystem emitting the line.
	FieldComponent = "component"
	// FieldEventType is a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDateKey is the YYYY-MM-DD bucket a line concerns.
	FieldDateKey = "date_key"
	// FieldCorrelationID ties together the lines of one command or assembly run.
	FieldCorrelationID = "correlation_id"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	dateKeyKey
)

// WithCorrelationID attaches a correlation identifier to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation identifier stored in ctx.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// WithDateKey attaches the bucket date key being worked on to ctx.
func WithDateKey(ctx context.Context, dateKey string) context.Context {
	if dateKey == "" {
		return ctx
	}
	return context.WithValue(ctx, dateKeyKey, dateKey)
}

// DateKeyFromContext returns the bucket date key stored in ctx.
func DateKeyFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	key, ok := ctx.Value(dateKeyKey).(string)
	return key, ok && key != ""
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if key, ok := DateKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDateKey, key))
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns logger augmented with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
