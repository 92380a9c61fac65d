package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks broker/storage network failures and subprocess
	// timeouts. Transient failures are requeued until the delivery budget
	// is exhausted.
	ErrTransient = errors.New("transient failure")
	// ErrValidation marks missing or malformed input that a retry cannot
	// fix. Validation failures are terminal.
	ErrValidation = errors.New("validation error")
	// ErrInference marks embedding-service failures (corrupt audio,
	// resource exhaustion). Retried up to a bounded count, then terminal.
	ErrInference = errors.New("inference error")
	// ErrConflict marks a lost compare-and-set race on the job ledger.
	// Conflicts are not errors: the message is acknowledged and dropped.
	ErrConflict = errors.New("status conflict")
	// ErrConfiguration marks broken wiring (bad endpoint, missing binary).
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing document or object.
	ErrNotFound = errors.New("not found")
)

// Kind is the coarse failure classification used for queue disposition.
type Kind string

const (
	KindTransient     Kind = "transient"
	KindValidation    Kind = "validation"
	KindInference     Kind = "inference"
	KindConflict      Kind = "conflict"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its Kind. Unwrapped errors are KindUnknown,
// which consumers treat as terminal to avoid poison-message loops.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInference):
		return KindInference
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure of this kind should be redelivered.
// Only transient and inference failures earn another delivery; everything
// else retries cannot fix.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindInference
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
