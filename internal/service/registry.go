package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/port/database"
)

// RegistryService manages agent registration for a tenant. Agent identity is
// immutable once registered; lifecycle moves only through status changes.
type RegistryService struct {
	store database.Store
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(store database.Store) *RegistryService {
	return &RegistryService{store: store}
}

// Register validates and registers a new agent for the tenant on the context.
func (s *RegistryService) Register(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ag, err := s.store.CreateAgent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}

	slog.Info("agent registered", "agent_id", ag.ID, "name", ag.Name, "capabilities", len(ag.Capabilities))
	return ag, nil
}

// Get returns an agent by ID.
func (s *RegistryService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// List returns all non-removed agents for the tenant on the context.
func (s *RegistryService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Pause stops an agent's schedules from firing without removing it.
func (s *RegistryService) Pause(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agent.StatusPaused)
}

// Resume reactivates a paused agent.
func (s *RegistryService) Resume(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agent.StatusActive)
}

// Deregister removes an agent. Its schedules are disabled so no further
// tasks are dispatched; history stays in place.
func (s *RegistryService) Deregister(ctx context.Context, id string) error {
	if err := s.setStatus(ctx, id, agent.StatusRemoved); err != nil {
		return err
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("list schedules for agent %s: %w", id, err)
	}
	for _, sc := range schedules {
		if sc.AgentID != id || !sc.Enabled {
			continue
		}
		if err := s.store.SetScheduleEnabled(ctx, sc.ID, false); err != nil {
			slog.Warn("disable schedule failed", "schedule_id", sc.ID, "error", err)
		}
	}

	slog.Info("agent deregistered", "agent_id", id)
	return nil
}

func (s *RegistryService) setStatus(ctx context.Context, id string, status agent.Status) error {
	if err := s.store.UpdateAgentStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set agent %s status %s: %w", id, status, err)
	}
	return nil
}
