package stage

import (
	"context"

	"scriptcheck/internal/broker"
)

// Handler is one pipeline stage: a queue consumer bound to a message type.
// Handle processes a single delivery; its error classification drives the
// broker's acknowledge/requeue/dead-letter decision.
type Handler interface {
	// Name identifies the stage in logs and health output.
	Name() string
	// Queue is the stream this stage consumes.
	Queue() string
	// Handle processes one delivery.
	Handle(ctx context.Context, delivery broker.Delivery) error
	// HealthCheck reports whether the stage's collaborators are reachable.
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
