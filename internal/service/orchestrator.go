package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	adapterotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/adapter/ws"
	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/domain/task"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/port/broadcast"
	"github.com/blipee-dev/agentcore/internal/port/database"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
	"github.com/blipee-dev/agentcore/internal/port/notifier"
)

// OrchestratorService finalizes task outcomes. All writes for one tenant
// flow through a single goroutine, so task results, action commits, and
// approval resolutions for that tenant never race each other.
type OrchestratorService struct {
	store     database.Store
	queue     messagequeue.Queue
	scheduler *SchedulerService
	decision  *DecisionService
	approvals *ApprovalService
	hub       broadcast.Broadcaster
	notify    *NotificationService
	metrics   *adapterotel.Metrics

	mu    sync.Mutex
	lanes map[string]chan func()

	// pending holds summary and confidence for tasks whose action awaits a
	// human decision; the result cannot be written until the verdict lands.
	pending sync.Map // task ID -> pendingResult

	stops  []func()
	laneWG sync.WaitGroup
}

type pendingResult struct {
	Summary    string
	Confidence float64
}

// NewOrchestratorService creates a new OrchestratorService.
func NewOrchestratorService(
	store database.Store,
	queue messagequeue.Queue,
	scheduler *SchedulerService,
	decision *DecisionService,
	approvals *ApprovalService,
	hub broadcast.Broadcaster,
) *OrchestratorService {
	return &OrchestratorService{
		store:     store,
		queue:     queue,
		scheduler: scheduler,
		decision:  decision,
		approvals: approvals,
		hub:       hub,
		lanes:     make(map[string]chan func()),
	}
}

// SetNotifications attaches the notification service for result alerts.
func (s *OrchestratorService) SetNotifications(n *NotificationService) {
	s.notify = n
}

// SetMetrics attaches metric instruments for outcome counters.
func (s *OrchestratorService) SetMetrics(m *adapterotel.Metrics) {
	s.metrics = m
}

// Start subscribes the orchestrator to task results and approval outcomes.
func (s *OrchestratorService) Start(ctx context.Context) error {
	stop, err := s.queue.Subscribe(ctx, messagequeue.SubjectTaskResult, s.onTaskResult)
	if err != nil {
		return fmt.Errorf("orchestrator subscribe results: %w", err)
	}
	s.stops = append(s.stops, stop)

	stop, err = s.queue.Subscribe(ctx, messagequeue.SubjectApprovalResolved, s.onApprovalResolved)
	if err != nil {
		return fmt.Errorf("orchestrator subscribe approvals: %w", err)
	}
	s.stops = append(s.stops, stop)

	slog.Info("orchestrator started")
	return nil
}

// Stop cancels subscriptions and drains the tenant lanes.
func (s *OrchestratorService) Stop() {
	for _, stop := range s.stops {
		stop()
	}
	s.mu.Lock()
	for _, lane := range s.lanes {
		close(lane)
	}
	s.lanes = make(map[string]chan func())
	s.mu.Unlock()
	s.laneWG.Wait()
}

// enqueue routes work onto the tenant's serial lane, creating it on first use.
func (s *OrchestratorService) enqueue(tenantID string, fn func()) {
	s.mu.Lock()
	lane, ok := s.lanes[tenantID]
	if !ok {
		lane = make(chan func(), 64)
		s.lanes[tenantID] = lane
		s.laneWG.Add(1)
		go func() {
			defer s.laneWG.Done()
			for work := range lane {
				work()
			}
		}()
	}
	s.mu.Unlock()
	lane <- fn
}

func (s *OrchestratorService) onTaskResult(ctx context.Context, _ string, data []byte) error {
	var r messagequeue.ResultPayload
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}

	s.enqueue(r.TenantID, func() {
		s.processResult(middleware.WithTenantID(context.Background(), r.TenantID), r)
	})
	return nil
}

func (s *OrchestratorService) processResult(ctx context.Context, r messagequeue.ResultPayload) {
	defer s.scheduler.TaskDone(r.ScheduleID)

	status := task.Status(r.Status)
	if err := s.store.UpdateTaskStatus(ctx, r.TaskID, status, r.Attempts, r.Error); err != nil {
		slog.Warn("finalize task status failed", "task_id", r.TaskID, "error", err)
	}

	if status == task.StatusFailed {
		if s.metrics != nil {
			s.metrics.TasksFailed.Add(ctx, 1)
		}
		s.appendTaskEvent(ctx, &r, event.TypeTaskFailed)
		s.writeResult(ctx, &task.Result{
			TaskID:    r.TaskID,
			TenantID:  r.TenantID,
			Summary:   r.Error,
			Outcome:   "failed",
			CreatedAt: time.Now().UTC(),
		})
		return
	}

	if s.metrics != nil {
		s.metrics.TasksSucceeded.Add(ctx, 1)
	}
	s.appendTaskEvent(ctx, &r, event.TypeTaskCompleted)

	if r.Action == nil {
		s.writeResult(ctx, &task.Result{
			TaskID:     r.TaskID,
			TenantID:   r.TenantID,
			Summary:    r.Summary,
			Confidence: r.Confidence,
			Outcome:    "no_action",
			CreatedAt:  time.Now().UTC(),
		})
		return
	}

	s.routeAction(ctx, r, r.Action)
}

// routeAction classifies a proposed action and routes it by verdict.
func (s *OrchestratorService) routeAction(ctx context.Context, r messagequeue.ResultPayload, a *action.Action) {
	if err := s.decision.Classify(ctx, a); err != nil {
		slog.Error("classification failed", "action_id", a.ID, "error", err)
		s.writeResult(ctx, &task.Result{
			TaskID:    r.TaskID,
			TenantID:  r.TenantID,
			Summary:   fmt.Sprintf("action rejected: %v", err),
			Outcome:   "rejected",
			CreatedAt: time.Now().UTC(),
		})
		return
	}

	if err := s.store.CreateAction(ctx, a); err != nil {
		slog.Error("persist action failed", "action_id", a.ID, "error", err)
		return
	}
	s.appendActionEvent(ctx, a, event.TypeActionClassified)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventActionDecision, ws.ActionDecisionEvent{
			ActionID:       a.ID,
			TaskID:         a.TaskID,
			TenantID:       a.TenantID,
			RiskScore:      a.RiskScore,
			Classification: string(a.Classification),
		})
	}

	switch a.Classification {
	case action.AutoApprove:
		s.commit(ctx, a, r.Summary, r.Confidence)

	case action.NeedsApproval:
		s.pending.Store(a.TaskID, pendingResult{Summary: r.Summary, Confidence: r.Confidence})
		if _, err := s.approvals.Submit(ctx, a); err != nil {
			slog.Error("submit approval failed", "action_id", a.ID, "error", err)
			s.pending.Delete(a.TaskID)
		}

	case action.Reject:
		s.appendActionEvent(ctx, a, event.TypeActionRejected)
		s.writeResult(ctx, &task.Result{
			TaskID:     a.TaskID,
			TenantID:   a.TenantID,
			Summary:    r.Summary,
			Confidence: r.Confidence,
			Outcome:    "rejected",
			CreatedAt:  time.Now().UTC(),
		})
	}
}

func (s *OrchestratorService) onApprovalResolved(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.ApprovalResolvedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal approval resolved: %w", err)
	}

	s.enqueue(p.TenantID, func() {
		s.processApprovalOutcome(middleware.WithTenantID(context.Background(), p.TenantID), p)
	})
	return nil
}

func (s *OrchestratorService) processApprovalOutcome(ctx context.Context, p messagequeue.ApprovalResolvedPayload) {
	var summary string
	var confidence float64
	if v, ok := s.pending.LoadAndDelete(p.TaskID); ok {
		pr := v.(pendingResult)
		summary, confidence = pr.Summary, pr.Confidence
	}

	res := &task.Result{
		TaskID:     p.TaskID,
		TenantID:   p.TenantID,
		Summary:    summary,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}

	switch approval.State(p.State) {
	case approval.StateApproved:
		a, err := s.store.GetAction(ctx, p.ActionID)
		if err != nil {
			slog.Error("load approved action failed", "action_id", p.ActionID, "error", err)
			return
		}
		s.commitApproved(ctx, a, res)
		return

	case approval.StateDenied:
		res.Outcome = "denied"

	case approval.StateExpired:
		// Expired requests never commit; the occurrence is simply dropped.
		res.Outcome = "expired"

	default:
		slog.Warn("ignoring non-terminal approval outcome", "request_id", p.RequestID, "state", p.State)
		return
	}

	s.writeResult(ctx, res)
}

// commit marks an auto-approved action committed and writes the result.
func (s *OrchestratorService) commit(ctx context.Context, a *action.Action, summary string, confidence float64) {
	res := &task.Result{
		TaskID:     a.TaskID,
		TenantID:   a.TenantID,
		Summary:    summary,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}
	s.commitApproved(ctx, a, res)
}

// commitApproved performs the exactly-once commit of an action and writes
// the committed result. The store's committed flag is the idempotency guard.
func (s *OrchestratorService) commitApproved(ctx context.Context, a *action.Action, res *task.Result) {
	if err := s.store.MarkActionCommitted(ctx, a.ID); err != nil {
		slog.Warn("action already committed or missing", "action_id", a.ID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ActionsCommitted.Add(ctx, 1)
	}
	s.appendActionEvent(ctx, a, event.TypeActionCommitted)

	res.Outcome = "committed"
	res.CommittedActionIDs = []string{a.ID}
	s.writeResult(ctx, res)

	slog.Info("action committed", "action_id", a.ID, "task_id", a.TaskID, "tenant_id", a.TenantID)
}

func (s *OrchestratorService) writeResult(ctx context.Context, res *task.Result) {
	if res.CommittedActionIDs == nil {
		res.CommittedActionIDs = []string{}
	}
	if err := s.store.CreateResult(ctx, res); err != nil {
		slog.Error("write result failed", "task_id", res.TaskID, "error", err)
		return
	}

	e := &event.Event{
		TenantID:  res.TenantID,
		TaskID:    res.TaskID,
		Type:      event.TypeResultPublished,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append result event failed", "task_id", res.TaskID, "error", err)
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventResult, ws.ResultEvent{
			TaskID:   res.TaskID,
			TenantID: res.TenantID,
			Outcome:  res.Outcome,
			Summary:  res.Summary,
		})
	}

	if s.notify != nil {
		switch res.Outcome {
		case "committed":
			s.notify.Notify(ctx, notifier.Notification{
				Title:    "Action committed",
				Message:  res.Summary,
				Level:    "success",
				Source:   notifier.SourceResultCommitted,
				TenantID: res.TenantID,
			})
		case "failed":
			s.notify.Notify(ctx, notifier.Notification{
				Title:    "Task failed",
				Message:  fmt.Sprintf("Task %s failed: %s", res.TaskID, res.Summary),
				Level:    "error",
				Source:   notifier.SourceTaskFailed,
				TenantID: res.TenantID,
			})
		}
	}
}

func (s *OrchestratorService) appendTaskEvent(ctx context.Context, r *messagequeue.ResultPayload, typ event.Type) {
	e := &event.Event{
		TenantID:  r.TenantID,
		AgentID:   r.AgentID,
		TaskID:    r.TaskID,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append event failed", "type", typ, "task_id", r.TaskID, "error", err)
	}
}

func (s *OrchestratorService) appendActionEvent(ctx context.Context, a *action.Action, typ event.Type) {
	payload, _ := json.Marshal(map[string]string{
		"action_id":      a.ID,
		"classification": string(a.Classification),
	})
	e := &event.Event{
		TenantID:  a.TenantID,
		TaskID:    a.TaskID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append event failed", "type", typ, "action_id", a.ID, "error", err)
	}
}
