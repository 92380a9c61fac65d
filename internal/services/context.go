package services

import "context"

type contextKey string

const (
	interviewIDKey contextKey = "interview_id"
	stageKey       contextKey = "stage"
	requestIDKey   contextKey = "request_id"
)

// WithInterviewID annotates context with the interview identifier.
func WithInterviewID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, interviewIDKey, id)
}

// InterviewIDFromContext extracts the interview identifier if present.
func InterviewIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(interviewIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
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

// WithRequestID annotates context with a correlation identifier minted per
// message delivery.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
