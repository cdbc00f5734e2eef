package messagequeue

import (
	"time"

	"github.com/blipee-dev/agentcore/internal/domain/action"
)

// DispatchPayload is published on SubjectTaskDispatch when a schedule fires.
type DispatchPayload struct {
	TaskID     string    `json:"task_id"`
	ScheduleID string    `json:"schedule_id"`
	AgentID    string    `json:"agent_id"`
	TenantID   string    `json:"tenant_id"`
	Capability string    `json:"capability"`
	DueAt      time.Time `json:"due_at"`
}

// ResultPayload is published on SubjectTaskResult when a worker finishes a
// task, successfully or not. Action is nil for failed tasks and for tasks
// that produced no proposed effect.
type ResultPayload struct {
	TaskID     string         `json:"task_id"`
	ScheduleID string         `json:"schedule_id"`
	AgentID    string         `json:"agent_id"`
	TenantID   string         `json:"tenant_id"`
	Status     string         `json:"status"` // terminal task.Status
	Attempts   int            `json:"attempts"`
	Error      string         `json:"error,omitempty"`
	Permanent  bool           `json:"permanent,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Action     *action.Action `json:"action,omitempty"`
}

// ProgressPayload is published on SubjectTaskProgress by a running worker.
type ProgressPayload struct {
	TaskID   string `json:"task_id"`
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
}

// ApprovalResolvedPayload is published on SubjectApprovalResolved when an
// approval request reaches a terminal state.
type ApprovalResolvedPayload struct {
	RequestID string `json:"request_id"`
	ActionID  string `json:"action_id"`
	TaskID    string `json:"task_id"`
	TenantID  string `json:"tenant_id"`
	State     string `json:"state"` // approval.State terminal value
	DecidedBy string `json:"decided_by,omitempty"`
}
