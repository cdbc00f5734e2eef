package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	adapterotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/adapter/ws"
	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/port/broadcast"
	"github.com/blipee-dev/agentcore/internal/port/database"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
	"github.com/blipee-dev/agentcore/internal/port/notifier"
)

// ApprovalService owns the human-approval workflow for NeedsApproval
// actions: submission, decision, one advisory escalation, and expiry.
type ApprovalService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	cfg     config.Approval
	notify  *NotificationService
	metrics *adapterotel.Metrics

	now func() time.Time // for testing
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, cfg config.Approval) *ApprovalService {
	return &ApprovalService{
		store: store,
		queue: queue,
		hub:   hub,
		cfg:   cfg,
		now:   time.Now,
	}
}

// SetNotifications attaches the notification service for approval alerts.
func (s *ApprovalService) SetNotifications(n *NotificationService) {
	s.notify = n
}

// SetMetrics attaches metric instruments for approval counters.
func (s *ApprovalService) SetMetrics(m *adapterotel.Metrics) {
	s.metrics = m
}

// Submit opens an approval request for a classified action. The TTL comes
// from the tenant's settings when set, otherwise from process config.
func (s *ApprovalService) Submit(ctx context.Context, a *action.Action) (*approval.Request, error) {
	if a.Classification != action.NeedsApproval {
		return nil, fmt.Errorf("%w: action %s is %s, not needs_approval", domain.ErrValidation, a.ID, a.Classification)
	}

	ttl := s.cfg.TTL
	if tn, err := s.store.GetTenant(ctx, a.TenantID); err == nil && tn.Settings.ApprovalTTL > 0 {
		ttl = tn.Settings.ApprovalTTL
	}

	now := s.now().UTC()
	req := &approval.Request{
		ID:        uuid.NewString(),
		ActionID:  a.ID,
		TaskID:    a.TaskID,
		TenantID:  a.TenantID,
		State:     approval.StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.CreateApproval(ctx, req); err != nil {
		return nil, fmt.Errorf("submit approval: %w", err)
	}

	s.appendEvent(ctx, req, event.TypeApprovalSubmitted)
	s.broadcast(ctx, req)
	if s.notify != nil {
		s.notify.Notify(ctx, notifier.Notification{
			Title:    "Action awaiting approval",
			Message:  fmt.Sprintf("Action %s (risk %.2f) needs a decision before %s.", a.ID, a.RiskScore, req.ExpiresAt.Format(time.RFC3339)),
			Level:    "warning",
			Source:   notifier.SourceApprovalSubmitted,
			TenantID: a.TenantID,
		})
	}

	slog.Info("approval submitted",
		"request_id", req.ID,
		"action_id", a.ID,
		"tenant_id", a.TenantID,
		"expires_at", req.ExpiresAt,
	)
	return req, nil
}

// Decide records a human verdict on a pending request. A request already in
// a terminal state reports domain.ErrAlreadyDecided; the first decision wins.
func (s *ApprovalService) Decide(ctx context.Context, id string, d approval.Decision, decidedBy string) (*approval.Request, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: invalid decision %q", domain.ErrValidation, d)
	}

	state := approval.StateApproved
	if d == approval.DecisionDeny {
		state = approval.StateDenied
	}

	if err := s.store.DecideApproval(ctx, id, state, decidedBy); err != nil {
		return nil, err
	}

	req, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}

	s.appendEvent(ctx, req, event.TypeApprovalDecided)
	s.broadcast(ctx, req)
	s.publishResolved(ctx, req)

	slog.Info("approval decided",
		"request_id", req.ID,
		"state", req.State,
		"decided_by", decidedBy,
	)
	return req, nil
}

// List returns the tenant's approval requests, optionally filtered by state.
func (s *ApprovalService) List(ctx context.Context, state approval.State) ([]approval.Request, error) {
	return s.store.ListApprovals(ctx, state)
}

// Run sweeps for due escalations and expiries until the context is canceled.
func (s *ApprovalService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("approval sweep started", "interval", s.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("approval sweep stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, s.now().UTC())
		}
	}
}

// Sweep expires overdue requests and escalates requests past the advisory
// threshold. Exported so tests can drive the clock explicitly.
func (s *ApprovalService) Sweep(ctx context.Context, now time.Time) {
	s.escalate(ctx, now)

	expired, err := s.store.ExpireApprovals(ctx, now)
	if err != nil {
		slog.Error("expire approvals failed", "error", err)
		return
	}
	for i := range expired {
		req := &expired[i]
		tctx := middleware.WithTenantID(ctx, req.TenantID)
		s.appendEvent(tctx, req, event.TypeApprovalExpired)
		s.broadcast(tctx, req)
		s.publishResolved(tctx, req)
		if s.metrics != nil {
			s.metrics.ApprovalsExpired.Add(ctx, 1)
		}
		slog.Info("approval expired", "request_id", req.ID, "tenant_id", req.TenantID)
	}
}

// escalate sends one advisory re-notification for pending requests that
// crossed the escalation fraction of their TTL.
func (s *ApprovalService) escalate(ctx context.Context, now time.Time) {
	if s.cfg.EscalateAfter <= 0 {
		return
	}

	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		slog.Error("escalation list tenants failed", "error", err)
		return
	}

	for _, tn := range tenants {
		tctx := middleware.WithTenantID(ctx, tn.ID)
		pending, err := s.store.ListApprovals(tctx, approval.StatePending)
		if err != nil {
			slog.Error("escalation list approvals failed", "tenant_id", tn.ID, "error", err)
			continue
		}
		for i := range pending {
			req := &pending[i]
			if req.EscalatedAt != nil {
				continue
			}
			deadline := req.CreatedAt.Add(time.Duration(float64(req.ExpiresAt.Sub(req.CreatedAt)) * s.cfg.EscalateAfter))
			if now.Before(deadline) {
				continue
			}
			if err := s.store.MarkApprovalEscalated(tctx, req.ID, now); err != nil {
				slog.Warn("mark escalated failed", "request_id", req.ID, "error", err)
				continue
			}
			s.appendEvent(tctx, req, event.TypeApprovalEscalated)
			if s.notify != nil {
				s.notify.Notify(tctx, notifier.Notification{
					Title:    "Approval still pending",
					Message:  fmt.Sprintf("Request %s expires at %s and has not been decided.", req.ID, req.ExpiresAt.Format(time.RFC3339)),
					Level:    "warning",
					Source:   notifier.SourceApprovalEscalated,
					TenantID: req.TenantID,
				})
			}
			slog.Info("approval escalated", "request_id", req.ID, "tenant_id", req.TenantID)
		}
	}
}

// publishResolved announces a terminal approval outcome on the queue so the
// orchestrator can finish the owning task's result.
func (s *ApprovalService) publishResolved(ctx context.Context, req *approval.Request) {
	if s.queue == nil {
		return
	}
	p := messagequeue.ApprovalResolvedPayload{
		RequestID: req.ID,
		ActionID:  req.ActionID,
		TaskID:    req.TaskID,
		TenantID:  req.TenantID,
		State:     string(req.State),
		DecidedBy: req.DecidedBy,
	}
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("marshal approval resolved failed", "request_id", req.ID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectApprovalResolved, data); err != nil {
		slog.Error("publish approval resolved failed", "request_id", req.ID, "error", err)
	}
}

func (s *ApprovalService) broadcast(ctx context.Context, req *approval.Request) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, ws.EventApprovalState, ws.ApprovalStateEvent{
		RequestID: req.ID,
		ActionID:  req.ActionID,
		TenantID:  req.TenantID,
		State:     string(req.State),
		DecidedBy: req.DecidedBy,
	})
}

func (s *ApprovalService) appendEvent(ctx context.Context, req *approval.Request, typ event.Type) {
	payload, _ := json.Marshal(map[string]string{
		"request_id": req.ID,
		"action_id":  req.ActionID,
		"state":      string(req.State),
	})
	e := &event.Event{
		TenantID:  req.TenantID,
		TaskID:    req.TaskID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append event failed", "type", typ, "request_id", req.ID, "error", err)
	}
}
