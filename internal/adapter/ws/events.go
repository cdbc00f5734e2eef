package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTaskStatus     = "task.status"
	EventTaskProgress   = "task.progress"
	EventActionDecision = "action.decision"
	EventApprovalState  = "approval.state"
	EventResult         = "result.published"
)

// TaskStatusEvent is broadcast when a task's status changes.
type TaskStatusEvent struct {
	TaskID   string `json:"task_id"`
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id,omitempty"`
	Status   string `json:"status"`
	Attempt  int    `json:"attempt,omitempty"`
}

// TaskProgressEvent is broadcast when a running task reports progress.
type TaskProgressEvent struct {
	TaskID   string `json:"task_id"`
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
}

// ActionDecisionEvent is broadcast when the decision engine classifies an action.
type ActionDecisionEvent struct {
	ActionID       string  `json:"action_id"`
	TaskID         string  `json:"task_id"`
	TenantID       string  `json:"tenant_id"`
	RiskScore      float64 `json:"risk_score"`
	Classification string  `json:"classification"`
}

// ApprovalStateEvent is broadcast when an approval request changes state.
type ApprovalStateEvent struct {
	RequestID string `json:"request_id"`
	ActionID  string `json:"action_id"`
	TenantID  string `json:"tenant_id"`
	State     string `json:"state"`
	DecidedBy string `json:"decided_by,omitempty"`
}

// ResultEvent is broadcast when a task result reaches its terminal disposition.
type ResultEvent struct {
	TaskID   string `json:"task_id"`
	TenantID string `json:"tenant_id"`
	Outcome  string `json:"outcome"`
	Summary  string `json:"summary,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
