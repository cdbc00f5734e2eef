// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/domain/schedule"
	"github.com/blipee-dev/agentcore/internal/domain/task"
	"github.com/blipee-dev/agentcore/internal/domain/tenant"
)

// Store is the port interface for database operations. Tenant scoping is
// carried on the context by the tenant middleware; implementations must
// filter every query by it.
type Store interface {
	// Tenants
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	UpdateTenant(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error)

	// Agents
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error)
	UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error

	// Schedules
	ListSchedules(ctx context.Context) ([]schedule.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*schedule.Schedule, error)
	CreateSchedule(ctx context.Context, req schedule.CreateRequest) (*schedule.Schedule, error)
	UpdateScheduleNextRun(ctx context.Context, id string, nextRunAt time.Time) error
	SetScheduleEnabled(ctx context.Context, id string, enabled bool) error

	// Tasks
	ListTasks(ctx context.Context, scheduleID string) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTaskStatus(ctx context.Context, id string, status task.Status, attempt int, taskErr string) error

	// Actions
	GetAction(ctx context.Context, id string) (*action.Action, error)
	CreateAction(ctx context.Context, a *action.Action) error
	MarkActionCommitted(ctx context.Context, id string) error

	// Approvals
	ListApprovals(ctx context.Context, state approval.State) ([]approval.Request, error)
	GetApproval(ctx context.Context, id string) (*approval.Request, error)
	CreateApproval(ctx context.Context, req *approval.Request) error
	DecideApproval(ctx context.Context, id string, state approval.State, decidedBy string) error
	MarkApprovalEscalated(ctx context.Context, id string, at time.Time) error
	ExpireApprovals(ctx context.Context, cutoff time.Time) ([]approval.Request, error)

	// Results
	CreateResult(ctx context.Context, r *task.Result) error
	ListResults(ctx context.Context, agentID string, limit int) ([]task.Result, error)

	// Events
	AppendEvent(ctx context.Context, e *event.Event) error
	ListEvents(ctx context.Context, taskID string) ([]event.Event, error)

	Close()
}
