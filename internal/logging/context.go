package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the emitting component.
	FieldComponent = "component"
	// FieldRunID identifies one fuse invocation.
	FieldRunID = "run_id"
	// FieldBundle is the capture bundle name.
	FieldBundle = "bundle"
	// FieldCamera is the camera name within a bundle.
	FieldCamera = "camera"
	FieldTopic  = "topic"
	FieldPath   = "path"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	runIDKey contextKey = iota
	bundleKey
	cameraKey
)

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithBundle returns a context carrying the bundle name.
func WithBundle(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, bundleKey, name)
}

// WithCamera returns a context carrying the camera name.
func WithCamera(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, cameraKey, name)
}

// RunIDFromContext returns the run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts the standard attributes stored in ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, entry := range []struct {
		key   contextKey
		field string
	}{
		{runIDKey, FieldRunID},
		{bundleKey, FieldBundle},
		{cameraKey, FieldCamera},
	} {
		if value, ok := ctx.Value(entry.key).(string); ok && value != "" {
			fields = append(fields, slog.String(entry.field, value))
		}
	}
	return fields
}

// WithContext returns logger augmented with the fields stored in ctx.
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
