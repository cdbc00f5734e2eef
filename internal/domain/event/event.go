// Package event defines the typed orchestration events appended to the audit
// trail and broadcast to subscribers.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies an orchestration event.
type Type string

const (
	TypeTaskDispatched    Type = "task.dispatched"
	TypeTaskStarted       Type = "task.started"
	TypeTaskProgress      Type = "task.progress"
	TypeTaskRetrying      Type = "task.retrying"
	TypeTaskCompleted     Type = "task.completed"
	TypeTaskFailed        Type = "task.failed"
	TypeActionClassified  Type = "action.classified"
	TypeActionCommitted   Type = "action.committed"
	TypeActionRejected    Type = "action.rejected"
	TypeApprovalSubmitted Type = "approval.submitted"
	TypeApprovalEscalated Type = "approval.escalated"
	TypeApprovalDecided   Type = "approval.decided"
	TypeApprovalExpired   Type = "approval.expired"
	TypeResultPublished   Type = "result.published"
)

// Event is one audit record. Payload is a small JSON object of
// string-to-string detail, matching the event type.
type Event struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
