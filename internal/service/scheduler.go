package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	adapterotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/domain/schedule"
	"github.com/blipee-dev/agentcore/internal/domain/task"
	"github.com/blipee-dev/agentcore/internal/logger"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/port/database"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
)

// SchedulerService fires recurring schedules. Each tick it advances every
// due schedule's next-run time strictly before dispatching, so a crash
// between the two steps drops an occurrence rather than doubling it.
type SchedulerService struct {
	store   database.Store
	queue   messagequeue.Queue
	cfg     config.Scheduler
	metrics *adapterotel.Metrics

	// inFlight maps schedule ID to the task currently executing for it.
	// A schedule with an in-flight task skips its occurrence entirely.
	inFlight sync.Map
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(store database.Store, queue messagequeue.Queue, cfg config.Scheduler) *SchedulerService {
	return &SchedulerService{store: store, queue: queue, cfg: cfg}
}

// SetMetrics attaches metric instruments for dispatch counters.
func (s *SchedulerService) SetMetrics(m *adapterotel.Metrics) {
	s.metrics = m
}

// RegisterSchedule validates and persists a new schedule for the tenant on
// the context. The referenced agent must exist and be active.
func (s *SchedulerService) RegisterSchedule(ctx context.Context, req schedule.CreateRequest) (*schedule.Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ag, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", req.AgentID, err)
	}
	if ag.Status != agent.StatusActive {
		return nil, fmt.Errorf("%w: agent %s is %s, expected active", domain.ErrValidation, ag.ID, ag.Status)
	}

	sc, err := s.store.CreateSchedule(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	slog.Info("schedule registered",
		"schedule_id", sc.ID,
		"agent_id", sc.AgentID,
		"rule", sc.Rule.String(),
		"next_run_at", sc.NextRunAt,
	)
	return sc, nil
}

// Run ticks the scheduler until the context is canceled.
func (s *SchedulerService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.Tick(ctx, now.UTC())
		}
	}
}

// Tick dispatches every due schedule across all enabled tenants. Exported
// so tests and the admin surface can drive the clock explicitly.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		slog.Error("scheduler list tenants failed", "error", err)
		return
	}

	for _, tn := range tenants {
		if !tn.Enabled {
			continue
		}
		tctx := middleware.WithTenantID(ctx, tn.ID)
		s.tickTenant(tctx, now)
	}
}

func (s *SchedulerService) tickTenant(ctx context.Context, now time.Time) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		slog.Error("scheduler list schedules failed", "error", err)
		return
	}

	for i := range schedules {
		sc := &schedules[i]
		if !sc.Enabled || sc.NextRunAt.After(now) {
			continue
		}

		if tid, busy := s.inFlight.Load(sc.ID); busy {
			if !s.taskFinished(ctx, tid.(string)) {
				slog.Debug("schedule occurrence skipped, task in flight", "schedule_id", sc.ID)
				// The occurrence is dropped, not queued: advance past it.
				if err := s.store.UpdateScheduleNextRun(ctx, sc.ID, sc.Rule.NextAfter(now)); err != nil {
					slog.Error("advance skipped schedule failed", "schedule_id", sc.ID, "error", err)
				}
				continue
			}
			// The task reached a terminal state without a result message
			// arriving, e.g. the worker could not publish it. Free the slot.
			slog.Warn("reclaimed stale in-flight slot", "schedule_id", sc.ID, "task_id", tid)
			s.inFlight.Delete(sc.ID)
		}

		if err := s.dispatch(ctx, sc, now); err != nil {
			slog.Error("dispatch failed", "schedule_id", sc.ID, "error", err)
		}
	}
}

// dispatch advances the schedule, creates the task record, and publishes
// the dispatch message, in that order.
func (s *SchedulerService) dispatch(ctx context.Context, sc *schedule.Schedule, now time.Time) error {
	if err := s.store.UpdateScheduleNextRun(ctx, sc.ID, sc.Rule.NextAfter(now)); err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}

	ag, err := s.store.GetAgent(ctx, sc.AgentID)
	if err != nil {
		return fmt.Errorf("agent %s: %w", sc.AgentID, err)
	}
	if ag.Status != agent.StatusActive {
		slog.Debug("schedule skipped, agent not active", "schedule_id", sc.ID, "agent_status", ag.Status)
		return nil
	}
	if len(ag.Capabilities) == 0 {
		return fmt.Errorf("agent %s has no capabilities", ag.ID)
	}
	capability := string(ag.Capabilities[0])

	t := &task.Task{
		ID:         uuid.NewString(),
		ScheduleID: sc.ID,
		AgentID:    sc.AgentID,
		TenantID:   sc.TenantID,
		Capability: capability,
		Status:     task.StatusPending,
		StartedAt:  now,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	payload := messagequeue.DispatchPayload{
		TaskID:     t.ID,
		ScheduleID: sc.ID,
		AgentID:    sc.AgentID,
		TenantID:   sc.TenantID,
		Capability: capability,
		DueAt:      now,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dispatch: %w", err)
	}

	pubCtx := logger.WithRequestID(ctx, uuid.NewString())
	if err := s.queue.Publish(pubCtx, messagequeue.SubjectTaskDispatch, data); err != nil {
		// No worker will ever see this task; fail it so it stays queryable
		// instead of pending forever.
		if uerr := s.store.UpdateTaskStatus(ctx, t.ID, task.StatusFailed, 0, fmt.Sprintf("publish dispatch: %v", err)); uerr != nil {
			slog.Error("finalize undispatched task failed", "task_id", t.ID, "error", uerr)
		}
		return fmt.Errorf("publish dispatch: %w", err)
	}

	s.inFlight.Store(sc.ID, t.ID)
	if s.metrics != nil {
		s.metrics.TasksDispatched.Add(ctx, 1)
	}
	s.appendEvent(ctx, t, event.TypeTaskDispatched)

	slog.Info("task dispatched",
		"task_id", t.ID,
		"schedule_id", sc.ID,
		"agent_id", sc.AgentID,
		"tenant_id", sc.TenantID,
		"capability", capability,
	)
	return nil
}

// taskFinished reports whether the task backing an in-flight slot has
// already reached a terminal state in the store. A vanished task record
// counts as finished.
func (s *SchedulerService) taskFinished(ctx context.Context, taskID string) bool {
	t, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	if err != nil {
		return false
	}
	return t.Status.IsTerminal()
}

// TaskDone clears the in-flight marker for a schedule once its task reaches
// a terminal state. Called by the orchestrator when it observes the result.
func (s *SchedulerService) TaskDone(scheduleID string) {
	s.inFlight.Delete(scheduleID)
}

// InFlight reports whether a schedule currently has a task executing.
func (s *SchedulerService) InFlight(scheduleID string) bool {
	_, ok := s.inFlight.Load(scheduleID)
	return ok
}

func (s *SchedulerService) appendEvent(ctx context.Context, t *task.Task, typ event.Type) {
	e := &event.Event{
		TenantID:  t.TenantID,
		AgentID:   t.AgentID,
		TaskID:    t.ID,
		Type:      typ,
		RequestID: logger.RequestID(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append event failed", "type", typ, "task_id", t.ID, "error", err)
	}
}
