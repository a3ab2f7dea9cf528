package services

import "context"

type contextKey string

const (
	itemIDKey    contextKey = "item-id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request-id"
)

// WithItemID attaches a catalog item identifier to the context.
func WithItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the catalog item identifier, if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(itemIDKey).(string)
	return id, ok && id != ""
}

// WithStage attaches the active workflow stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the active workflow stage name, if present.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

// WithRequestID attaches a per-run correlation identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the per-run correlation identifier, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
