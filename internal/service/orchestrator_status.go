package service

import (
	"context"
	"fmt"

	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/task"
)

// TenantStatus is the aggregated health view for one tenant.
type TenantStatus struct {
	TenantID         string        `json:"tenant_id"`
	Enabled          bool          `json:"enabled"`
	Agents           int           `json:"agents"`
	ActiveAgents     int           `json:"active_agents"`
	Schedules        int           `json:"schedules"`
	EnabledSchedules int           `json:"enabled_schedules"`
	InFlightTasks    int           `json:"in_flight_tasks"`
	FailedTasks      int           `json:"failed_tasks"`
	LastErrors       []string      `json:"last_errors"`
	PendingApprovals int           `json:"pending_approvals"`
	RecentResults    []task.Result `json:"recent_results"`
	QueueConnected   bool          `json:"queue_connected"`
}

// maxLastErrors bounds the error sample returned in a status payload.
const maxLastErrors = 5

// Status aggregates the tenant's orchestration health. The tenant scope
// comes from the context.
func (s *OrchestratorService) Status(ctx context.Context, tenantID string) (*TenantStatus, error) {
	tn, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("status for tenant %s: %w", tenantID, err)
	}

	st := &TenantStatus{
		TenantID:       tn.ID,
		Enabled:        tn.Enabled,
		QueueConnected: s.queue != nil && s.queue.IsConnected(),
		LastErrors:     []string{},
		RecentResults:  []task.Result{},
	}

	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("status list agents: %w", err)
	}
	st.Agents = len(agents)
	for _, ag := range agents {
		if ag.Status == agent.StatusActive {
			st.ActiveAgents++
		}
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("status list schedules: %w", err)
	}
	st.Schedules = len(schedules)
	for _, sc := range schedules {
		if sc.Enabled {
			st.EnabledSchedules++
		}
		if s.scheduler.InFlight(sc.ID) {
			st.InFlightTasks++
		}

		tasks, err := s.store.ListTasks(ctx, sc.ID)
		if err != nil {
			return nil, fmt.Errorf("status list tasks: %w", err)
		}
		for _, t := range tasks {
			if t.Status != task.StatusFailed {
				continue
			}
			st.FailedTasks++
			if t.Error != "" && len(st.LastErrors) < maxLastErrors {
				st.LastErrors = append(st.LastErrors, t.Error)
			}
		}
	}

	pending, err := s.store.ListApprovals(ctx, approval.StatePending)
	if err != nil {
		return nil, fmt.Errorf("status list approvals: %w", err)
	}
	st.PendingApprovals = len(pending)

	for _, ag := range agents {
		results, err := s.store.ListResults(ctx, ag.ID, 5)
		if err != nil {
			return nil, fmt.Errorf("status list results: %w", err)
		}
		st.RecentResults = append(st.RecentResults, results...)
	}

	return st, nil
}
