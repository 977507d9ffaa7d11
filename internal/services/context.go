package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	stageKey   contextKey = "stage"
	sectionKey contextKey = "section"
)

// WithRunID annotates context with the assembly run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the assembly run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(runIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the assembly stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithSection annotates context with the section label currently being
// processed, e.g. during parallel normalization.
func WithSection(ctx context.Context, section string) context.Context {
	if section == "" {
		return ctx
	}
	return context.WithValue(ctx, sectionKey, section)
}

// SectionFromContext returns the section label if present.
func SectionFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(sectionKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
