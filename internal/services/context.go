package services

import "context"

type contextKey string

const (
	postIDKey    contextKey = "post_id"
	cycleIDKey   contextKey = "cycle_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithPostID annotates context with the WordPress post identifier.
func WithPostID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, postIDKey, id)
}

// PostIDFromContext extracts the post identifier if present.
func PostIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(postIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithCycleID annotates context with the enrichment cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext returns the cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the per-item pipeline stage name
// (resolve, lookup, enrich, update).
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
