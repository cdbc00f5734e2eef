// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the orchestration message flow.
const (
	// SubjectTaskDispatch carries a dispatch from the scheduler to the
	// executor worker pool.
	SubjectTaskDispatch = "tasks.dispatch"

	// SubjectTaskResult carries a finished task (result + proposed action)
	// from the executor back to the orchestrator.
	SubjectTaskResult = "tasks.result"

	// SubjectTaskProgress carries streaming progress updates from workers.
	SubjectTaskProgress = "tasks.progress"

	// SubjectApprovalResolved carries terminal approval outcomes from the
	// approval workflow to the orchestrator.
	SubjectApprovalResolved = "approvals.resolved"
)
