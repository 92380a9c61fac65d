package ledger

import (
	"context"
	"fmt"

	"scriptcheck/internal/services"
	"scriptcheck/internal/verdict"
)

// ErrConflict is returned when a compare-and-set transition loses: the job's
// current status was not among the expected ones, or results already exist.
var ErrConflict = services.ErrConflict

// ErrNotFound is returned when no job exists for the interview identifier.
var ErrNotFound = services.ErrNotFound

// ResultsUpdate carries everything RecordResults persists atomically with the
// COMPLETED transition.
type ResultsUpdate struct {
	Result            verdict.InterviewResult
	EmbeddingsGCSPath string
	JSONGCSPath       string
	Event             HistoryEvent
}

// Store is the interview job ledger. Implementations must make Transition and
// RecordResults atomic compare-and-set operations so concurrent consumers of
// a redelivered message cannot both win.
type Store interface {
	// EnsureJob creates the job in QUEUED with the given first history event
	// if it does not exist. An existing job is left untouched.
	EnsureJob(ctx context.Context, interviewID string, event HistoryEvent) error

	// Transition moves the job to the target status if and only if its
	// current status is one of expected, appending the event, bumping
	// last_updated, and incrementing processing_attempts when the target is
	// PROCESSING. Returns ErrConflict when the guard fails and ErrNotFound
	// when the job does not exist.
	Transition(ctx context.Context, interviewID string, to Status, stage string, event HistoryEvent, expected ...Status) (*InterviewJob, error)

	// AppendHistory adds an event without changing status.
	AppendHistory(ctx context.Context, interviewID string, event HistoryEvent) error

	// RecordResults finalizes the job: sets results and COMPLETED exactly
	// once, guarded on status PROCESSING with no prior results. A job that
	// already completed yields ErrConflict; results are never overwritten.
	RecordResults(ctx context.Context, interviewID string, update ResultsUpdate) error

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, interviewID string) (*InterviewJob, error)
}

func conflictError(interviewID string, current Status, expected []Status) error {
	return services.Wrap(
		services.ErrConflict,
		"ledger",
		"transition",
		fmt.Sprintf("interview %s is %s, expected one of %v", interviewID, current, expected),
		nil,
	)
}

func notFoundError(interviewID, operation string) error {
	return services.Wrap(
		services.ErrNotFound,
		"ledger",
		operation,
		fmt.Sprintf("interview %s not found", interviewID),
		nil,
	)
}
