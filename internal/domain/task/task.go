// Package task defines the Task domain entity: one firing of a schedule.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status is final. A task is never mutated
// after reaching a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task is one instance of a schedule firing. Created by the scheduler at
// dispatch; its terminal state is set exactly once by the worker.
type Task struct {
	ID          string     `json:"id"`
	ScheduleID  string     `json:"schedule_id"`
	AgentID     string     `json:"agent_id"`
	TenantID    string     `json:"tenant_id"`
	Capability  string     `json:"capability"`
	Status      Status     `json:"status"`
	Attempt     int        `json:"attempt"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result is the output surfaced to tenants once a task's action reaches a
// terminal disposition (committed, denied, or expired without commit).
type Result struct {
	TaskID             string    `json:"task_id"`
	TenantID           string    `json:"tenant_id"`
	Summary            string    `json:"summary"`
	Confidence         float64   `json:"confidence"`
	CommittedActionIDs []string  `json:"committed_action_ids"`
	Outcome            string    `json:"outcome"` // "committed", "rejected", "denied", "expired", "failed", "no_action"
	CreatedAt          time.Time `json:"created_at"`
}
