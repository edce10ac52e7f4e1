package logging

import (
	"context"
	"log/slog"

	"byline/internal/services"
)

// Shared structured logging field names.
const (
	FieldComponent     = "component"
	FieldPostID        = "post_id"
	FieldCycleID       = "cycle_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldCredential    = "credential"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldAlert         = "alert"
)

// ContextFields extracts the byline annotations stored on ctx as slog attrs.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if postID, ok := services.PostIDFromContext(ctx); ok {
		attrs = append(attrs, slog.Int64(FieldPostID, postID))
	}
	if cycleID, ok := services.CycleIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldCycleID, cycleID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldCorrelationID, requestID))
	}
	return attrs
}

// WithContext returns a logger pre-populated with the annotations on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := ContextFields(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return logger.With(args...)
}
