package logging

import (
	"context"
	"log/slog"

	"scriptcheck/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldInterviewID is the standardized structured logging key for interview identifiers.
	FieldInterviewID = "interview_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldQueue is the standardized structured logging key for queue names.
	FieldQueue = "queue"
	// FieldCorrelationID is the standardized structured logging key for per-delivery correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines for dashboard filtering.
	FieldEventType = "event_type"
	// FieldErrorKind carries the services.Kind classification of a failure.
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests the first thing an operator should check.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.InterviewIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldInterviewID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
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
