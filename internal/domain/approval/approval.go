// Package approval defines the human-approval request state machine.
package approval

import "time"

// State of an approval request. Terminal states are final: no re-open.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateDenied   State = "denied"
	StateExpired  State = "expired"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateDenied || s == StateExpired
}

// Decision is a human verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Valid reports whether d is a recognized decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// Request exists only for NeedsApproval actions. It transitions to a
// terminal state exactly once, by human decision or by the expiry sweep.
type Request struct {
	ID          string     `json:"id"`
	ActionID    string     `json:"action_id"`
	TaskID      string     `json:"task_id"`
	TenantID    string     `json:"tenant_id"`
	State       State      `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}
