package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	adapterotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/adapter/ws"
	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/domain/task"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/port/broadcast"
	"github.com/blipee-dev/agentcore/internal/port/completion"
	"github.com/blipee-dev/agentcore/internal/port/database"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
	"github.com/blipee-dev/agentcore/internal/port/metricstore"
)

// ExecutorService runs dispatched tasks on a bounded worker pool. A global
// semaphore caps total concurrency; a per-tenant semaphore caps any single
// tenant's share so one noisy tenant cannot starve the rest.
type ExecutorService struct {
	store    database.Store
	queue    messagequeue.Queue
	complete completion.Completer
	readings metricstore.Reader
	hub      broadcast.Broadcaster
	cfg      config.Workers
	metrics  *adapterotel.Metrics

	pool *semaphore.Weighted

	mu      sync.Mutex
	tenants map[string]*semaphore.Weighted

	handlers map[string]capabilityHandler

	stop func()
	wg   sync.WaitGroup
}

// NewExecutorService creates a new ExecutorService.
func NewExecutorService(
	store database.Store,
	queue messagequeue.Queue,
	complete completion.Completer,
	readings metricstore.Reader,
	hub broadcast.Broadcaster,
	cfg config.Workers,
) *ExecutorService {
	s := &ExecutorService{
		store:    store,
		queue:    queue,
		complete: complete,
		readings: readings,
		hub:      hub,
		cfg:      cfg,
		pool:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		tenants:  make(map[string]*semaphore.Weighted),
	}
	s.handlers = builtinHandlers(complete, readings)
	return s
}

// SetMetrics attaches metric instruments for execution counters.
func (s *ExecutorService) SetMetrics(m *adapterotel.Metrics) {
	s.metrics = m
}

// Start subscribes the executor to the dispatch subject.
func (s *ExecutorService) Start(ctx context.Context) error {
	stop, err := s.queue.Subscribe(ctx, messagequeue.SubjectTaskDispatch, s.onDispatch)
	if err != nil {
		return fmt.Errorf("executor subscribe: %w", err)
	}
	s.stop = stop
	slog.Info("executor started",
		"max_concurrent", s.cfg.MaxConcurrent,
		"tenant_quota", s.cfg.TenantQuota,
		"max_attempts", s.cfg.MaxAttempts,
	)
	return nil
}

// Stop cancels the subscription and waits for in-flight tasks to finish.
func (s *ExecutorService) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.wg.Wait()
}

// tenantSem returns the weighted semaphore bounding one tenant's slots.
func (s *ExecutorService) tenantSem(tenantID string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()

	sem, ok := s.tenants[tenantID]
	if !ok {
		quota := int64(float64(s.cfg.MaxConcurrent) * s.cfg.TenantQuota)
		if quota < 1 {
			quota = 1
		}
		sem = semaphore.NewWeighted(quota)
		s.tenants[tenantID] = sem
	}
	return sem
}

// onDispatch accepts a dispatch message and hands it to a worker goroutine.
// The message is acked immediately; the outcome travels on the result subject.
func (s *ExecutorService) onDispatch(ctx context.Context, _ string, data []byte) error {
	var d messagequeue.DispatchPayload
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("unmarshal dispatch: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTask(middleware.WithTenantID(ctx, d.TenantID), d)
	}()
	return nil
}

func (s *ExecutorService) runTask(ctx context.Context, d messagequeue.DispatchPayload) {
	// Tenant slot first: a tenant at quota waits here without holding a
	// pool slot another tenant could use.
	tsem := s.tenantSem(d.TenantID)
	if err := tsem.Acquire(ctx, 1); err != nil {
		return
	}
	defer tsem.Release(1)

	if err := s.pool.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.pool.Release(1)

	ctx, span := adapterotel.StartTaskSpan(ctx, d.TaskID, d.TenantID, d.Capability)
	defer span.End()

	started := time.Now()
	s.setStatus(ctx, d, task.StatusRunning, 1, "")

	out, attempts, err := s.runWithRetry(ctx, d)

	result := messagequeue.ResultPayload{
		TaskID:     d.TaskID,
		ScheduleID: d.ScheduleID,
		AgentID:    d.AgentID,
		TenantID:   d.TenantID,
		Attempts:   attempts,
	}

	switch {
	case err != nil:
		result.Status = string(task.StatusFailed)
		result.Error = err.Error()
		result.Permanent = isPermanent(err)
	default:
		result.Status = string(task.StatusSucceeded)
		result.Summary = out.Summary
		result.Confidence = out.Confidence
		if out.Payload != nil {
			result.Action = &action.Action{
				ID:        uuid.NewString(),
				TaskID:    d.TaskID,
				TenantID:  d.TenantID,
				Payload:   *out.Payload,
				Risk:      out.Risk,
				CreatedAt: time.Now().UTC(),
			}
		}
	}

	if s.metrics != nil {
		s.metrics.TaskDuration.Record(ctx, time.Since(started).Seconds())
	}

	data, merr := json.Marshal(result)
	if merr != nil {
		slog.Error("marshal result failed", "task_id", d.TaskID, "error", merr)
		s.finalizeUndelivered(ctx, d, attempts, fmt.Sprintf("marshal result: %v", merr))
		return
	}
	if perr := s.queue.Publish(ctx, messagequeue.SubjectTaskResult, data); perr != nil {
		slog.Error("publish result failed", "task_id", d.TaskID, "error", perr)
		s.finalizeUndelivered(ctx, d, attempts, fmt.Sprintf("deliver result: %v", perr))
	}
}

// finalizeUndelivered writes a terminal status directly when the result
// message cannot reach the orchestrator. Without it the task would stay
// non-terminal forever and the schedule's in-flight slot would never free.
// The scheduler reclaims the slot on its next tick once it sees the task
// is terminal.
func (s *ExecutorService) finalizeUndelivered(ctx context.Context, d messagequeue.DispatchPayload, attempts int, reason string) {
	if err := s.store.UpdateTaskStatus(ctx, d.TaskID, task.StatusFailed, attempts, reason); err != nil {
		slog.Error("finalize undelivered result failed", "task_id", d.TaskID, "error", err)
		return
	}
	s.appendEvent(ctx, d, event.TypeTaskFailed)
	if s.metrics != nil {
		s.metrics.TasksFailed.Add(ctx, 1)
	}
}

// runWithRetry executes the capability handler with exponential backoff.
// Validation failures are permanent; everything else is retried up to
// MaxAttempts total attempts, each under its own timeout.
func (s *ExecutorService) runWithRetry(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, int, error) {
	handler, ok := s.handlers[d.Capability]
	if !ok {
		return nil, 1, fmt.Errorf("no handler for capability %q: %w", d.Capability, errPermanent)
	}

	attempts := 0
	operation := func() (*handlerOutput, error) {
		attempts++
		if attempts > 1 {
			s.setStatus(ctx, d, task.StatusRetrying, attempts, "")
			if s.metrics != nil {
				s.metrics.TaskRetries.Add(ctx, 1)
			}
			s.progress(ctx, d, fmt.Sprintf("retrying, attempt %d of %d", attempts, s.cfg.MaxAttempts))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()

		out, err := handler(attemptCtx, d)
		if err != nil {
			if isPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if out.Payload != nil {
			if verr := out.Payload.Validate(); verr != nil {
				return nil, backoff.Permanent(fmt.Errorf("%w: %w", errPermanent, verr))
			}
		}
		return out, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryBaseDelay

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
	)
	return out, attempts, err
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

func (s *ExecutorService) setStatus(ctx context.Context, d messagequeue.DispatchPayload, st task.Status, attempt int, taskErr string) {
	if err := s.store.UpdateTaskStatus(ctx, d.TaskID, st, attempt, taskErr); err != nil {
		slog.Warn("update task status failed", "task_id", d.TaskID, "status", st, "error", err)
	}
	typ := event.TypeTaskStarted
	if st == task.StatusRetrying {
		typ = event.TypeTaskRetrying
	}
	s.appendEvent(ctx, d, typ)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
			TaskID:   d.TaskID,
			TenantID: d.TenantID,
			AgentID:  d.AgentID,
			Status:   string(st),
			Attempt:  attempt,
		})
	}
}

// progress publishes a streaming progress update for a running task.
func (s *ExecutorService) progress(ctx context.Context, d messagequeue.DispatchPayload, msg string) {
	p := messagequeue.ProgressPayload{TaskID: d.TaskID, TenantID: d.TenantID, Message: msg}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTaskProgress, data); err != nil {
		slog.Debug("publish progress failed", "task_id", d.TaskID, "error", err)
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventTaskProgress, ws.TaskProgressEvent{
			TaskID:   d.TaskID,
			TenantID: d.TenantID,
			Message:  msg,
		})
	}
}

func (s *ExecutorService) appendEvent(ctx context.Context, d messagequeue.DispatchPayload, typ event.Type) {
	e := &event.Event{
		TenantID:  d.TenantID,
		AgentID:   d.AgentID,
		TaskID:    d.TaskID,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Warn("append event failed", "type", typ, "task_id", d.TaskID, "error", err)
	}
}
