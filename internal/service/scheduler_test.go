package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/event"
	"github.com/blipee-dev/agentcore/internal/domain/schedule"
	"github.com/blipee-dev/agentcore/internal/domain/task"
	"github.com/blipee-dev/agentcore/internal/domain/tenant"
	"github.com/blipee-dev/agentcore/internal/port/database"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is an in-memory implementation of database.Store for testing.
// It mimics the SQL guards of the real store: terminal tasks never mutate,
// actions commit at most once, and decided approvals stay decided.
type mockStore struct {
	mu sync.Mutex

	tenants   []tenant.Tenant
	agents    []agent.Agent
	schedules []schedule.Schedule
	tasks     map[string]*task.Task
	actions   map[string]*action.Action
	approvals map[string]*approval.Request
	results   []task.Result
	events    []event.Event

	commits        int
	nextRunUpdates int
	escalations    int

	// Error hooks — set these to inject failures.
	listTenantsErr error
	getTenantErr   error
	getAgentErr    error
	createTaskErr  error
}

func newMockStore() *mockStore {
	return &mockStore{
		tasks:     make(map[string]*task.Task),
		actions:   make(map[string]*action.Action),
		approvals: make(map[string]*approval.Request),
	}
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tenant.Tenant(nil), m.tenants...), m.listTenantsErr
}

func (m *mockStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getTenantErr != nil {
		return nil, m.getTenantErr
	}
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			tn := m.tenants[i]
			return &tn, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tn := tenant.Tenant{ID: "tenant-" + req.Slug, Name: req.Name, Slug: req.Slug, Enabled: true}
	m.tenants = append(m.tenants, tn)
	return &tn, nil
}

func (m *mockStore) UpdateTenant(_ context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		if m.tenants[i].ID != id {
			continue
		}
		if req.Name != "" {
			m.tenants[i].Name = req.Name
		}
		if req.Enabled != nil {
			m.tenants[i].Enabled = *req.Enabled
		}
		if req.Settings != nil {
			m.tenants[i].Settings = *req.Settings
		}
		tn := m.tenants[i]
		return &tn, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListAgents(_ context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]agent.Agent(nil), m.agents...), nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getAgentErr != nil {
		return nil, m.getAgentErr
	}
	for i := range m.agents {
		if m.agents[i].ID == id {
			ag := m.agents[i]
			return &ag, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ag := agent.Agent{
		ID:           fmt.Sprintf("agent-%d", len(m.agents)+1),
		TenantID:     "tn-1",
		Name:         req.Name,
		Capabilities: req.Capabilities,
		Status:       agent.StatusActive,
		Version:      1,
	}
	m.agents = append(m.agents, ag)
	return &ag, nil
}

func (m *mockStore) UpdateAgentStatus(_ context.Context, id string, status agent.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			m.agents[i].Status = status
			m.agents[i].Version++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) ListSchedules(_ context.Context) ([]schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schedule.Schedule(nil), m.schedules...), nil
}

func (m *mockStore) GetSchedule(_ context.Context, id string) (*schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.schedules {
		if m.schedules[i].ID == id {
			sc := m.schedules[i]
			return &sc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateSchedule(_ context.Context, req schedule.CreateRequest) (*schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := schedule.ParseRule(req.Rule)
	if err != nil {
		return nil, err
	}
	sc := schedule.Schedule{
		ID:        fmt.Sprintf("sched-%d", len(m.schedules)+1),
		TenantID:  "tn-1",
		AgentID:   req.AgentID,
		Rule:      r,
		NextRunAt: r.NextAfter(time.Now().UTC()),
		Enabled:   true,
	}
	m.schedules = append(m.schedules, sc)
	return &sc, nil
}

func (m *mockStore) UpdateScheduleNextRun(_ context.Context, id string, nextRunAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.schedules {
		if m.schedules[i].ID == id {
			m.schedules[i].NextRunAt = nextRunAt
			m.nextRunUpdates++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) SetScheduleEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.schedules {
		if m.schedules[i].ID == id {
			m.schedules[i].Enabled = enabled
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) ListTasks(_ context.Context, scheduleID string) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		if scheduleID == "" || t.ScheduleID == scheduleID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTaskErr != nil {
		return m.createTaskErr
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockStore) UpdateTaskStatus(_ context.Context, id string, status task.Status, attempt int, taskErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return domain.ErrNotFound
	}
	t.Status = status
	t.Attempt = attempt
	t.Error = taskErr
	if status.IsTerminal() {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}

func (m *mockStore) GetAction(_ context.Context, id string) (*action.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.actions[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateAction(_ context.Context, a *action.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.actions[a.ID] = &cp
	return nil
}

func (m *mockStore) MarkActionCommitted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok || a.Committed {
		return domain.ErrNotFound
	}
	a.Committed = true
	m.commits++
	return nil
}

func (m *mockStore) ListApprovals(_ context.Context, state approval.State) ([]approval.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []approval.Request
	for _, r := range m.approvals {
		if state == "" || r.State == state {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockStore) GetApproval(_ context.Context, id string) (*approval.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.approvals[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateApproval(_ context.Context, req *approval.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.approvals[req.ID] = &cp
	return nil
}

func (m *mockStore) DecideApproval(_ context.Context, id string, state approval.State, decidedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.approvals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.State != approval.StatePending {
		return domain.ErrAlreadyDecided
	}
	now := time.Now().UTC()
	r.State = state
	r.DecidedBy = decidedBy
	r.DecidedAt = &now
	return nil
}

func (m *mockStore) MarkApprovalEscalated(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.approvals[id]
	if !ok || r.EscalatedAt != nil {
		return domain.ErrNotFound
	}
	r.EscalatedAt = &at
	m.escalations++
	return nil
}

func (m *mockStore) ExpireApprovals(_ context.Context, cutoff time.Time) ([]approval.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []approval.Request
	for _, r := range m.approvals {
		if r.State == approval.StatePending && !r.ExpiresAt.After(cutoff) {
			r.State = approval.StateExpired
			expired = append(expired, *r)
		}
	}
	return expired, nil
}

func (m *mockStore) CreateResult(_ context.Context, r *task.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *r)
	return nil
}

func (m *mockStore) ListResults(_ context.Context, agentID string, limit int) ([]task.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Result
	for _, r := range m.results {
		if t, ok := m.tasks[r.TaskID]; ok && t.AgentID == agentID {
			out = append(out, r)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) AppendEvent(_ context.Context, e *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return nil
}

func (m *mockStore) ListEvents(_ context.Context, taskID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) Close() {}

// snapshotResults returns a copy of the written results.
func (m *mockStore) snapshotResults() []task.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]task.Result(nil), m.results...)
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []publishedMsg

	publishErr error
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMsg{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) messages(subject string) []publishedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []publishedMsg
	for _, m := range q.published {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// --- SchedulerService tests ---

// schedulerFixture seeds one enabled tenant, one active agent, and one
// enabled interval schedule that is already due.
func schedulerFixture(due time.Time) (*mockStore, *mockQueue, *SchedulerService) {
	store := newMockStore()
	store.tenants = []tenant.Tenant{{ID: "tn-1", Name: "Acme", Slug: "acme", Enabled: true}}
	store.agents = []agent.Agent{{
		ID:           "agent-1",
		TenantID:     "tn-1",
		Name:         "emissions",
		Capabilities: []agent.Capability{agent.CapabilityEmissionsAnalysis},
		Status:       agent.StatusActive,
	}}
	store.schedules = []schedule.Schedule{{
		ID:        "sched-1",
		TenantID:  "tn-1",
		AgentID:   "agent-1",
		Rule:      schedule.Rule{Kind: schedule.KindInterval, Every: time.Hour},
		NextRunAt: due,
		Enabled:   true,
	}}

	queue := &mockQueue{}
	svc := NewSchedulerService(store, queue, config.Scheduler{PollInterval: time.Second})
	return store, queue, svc
}

func TestSchedulerTickDispatchesDueSchedule(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))

	svc.Tick(context.Background(), now)

	msgs := queue.messages(messagequeue.SubjectTaskDispatch)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(msgs))
	}
	if len(store.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(store.tasks))
	}
	if !svc.InFlight("sched-1") {
		t.Fatal("expected schedule to be marked in flight")
	}

	sc, _ := store.GetSchedule(context.Background(), "sched-1")
	if !sc.NextRunAt.After(now) {
		t.Fatalf("expected next run after %v, got %v", now, sc.NextRunAt)
	}
}

func TestSchedulerTickNoDoubleFire(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	_, queue, svc := schedulerFixture(now.Add(-time.Minute))

	svc.Tick(context.Background(), now)
	svc.Tick(context.Background(), now.Add(time.Second))

	msgs := queue.messages(messagequeue.SubjectTaskDispatch)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 dispatch across both ticks, got %d", len(msgs))
	}
}

func TestSchedulerInFlightOccurrenceSkipped(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))

	svc.Tick(context.Background(), now)

	// Force the schedule due again while its task is still running.
	later := now.Add(2 * time.Hour)
	if err := store.UpdateScheduleNextRun(context.Background(), "sched-1", later.Add(-time.Minute)); err != nil {
		t.Fatalf("rewind schedule: %v", err)
	}

	svc.Tick(context.Background(), later)

	msgs := queue.messages(messagequeue.SubjectTaskDispatch)
	if len(msgs) != 1 {
		t.Fatalf("expected skipped occurrence, got %d dispatches", len(msgs))
	}

	// The skipped occurrence is dropped, not queued: the schedule advanced.
	sc, _ := store.GetSchedule(context.Background(), "sched-1")
	if !sc.NextRunAt.After(later) {
		t.Fatalf("expected skipped schedule advanced past %v, got %v", later, sc.NextRunAt)
	}
}

func TestSchedulerTaskDoneAllowsNextDispatch(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))

	svc.Tick(context.Background(), now)
	svc.TaskDone("sched-1")

	later := now.Add(2 * time.Hour)
	if err := store.UpdateScheduleNextRun(context.Background(), "sched-1", later.Add(-time.Minute)); err != nil {
		t.Fatalf("rewind schedule: %v", err)
	}
	svc.Tick(context.Background(), later)

	msgs := queue.messages(messagequeue.SubjectTaskDispatch)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 dispatches after TaskDone, got %d", len(msgs))
	}
}

func TestSchedulerAdvancesBeforeDispatch(t *testing.T) {
	// A failed publish must still leave the schedule advanced: the
	// occurrence drops rather than firing twice on the next tick.
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))
	queue.publishErr = errors.New("nats down")

	svc.Tick(context.Background(), now)

	if svc.InFlight("sched-1") {
		t.Fatal("failed dispatch must not mark the schedule in flight")
	}
	sc, _ := store.GetSchedule(context.Background(), "sched-1")
	if !sc.NextRunAt.After(now) {
		t.Fatalf("expected schedule advanced despite publish failure, got %v", sc.NextRunAt)
	}

	queue.publishErr = nil
	svc.Tick(context.Background(), now.Add(time.Second))
	if got := len(queue.messages(messagequeue.SubjectTaskDispatch)); got != 0 {
		t.Fatalf("dropped occurrence must not re-fire, got %d dispatches", got)
	}
}

func TestSchedulerSkipsDisabledTenant(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))
	store.tenants[0].Enabled = false

	svc.Tick(context.Background(), now)

	if got := len(queue.messages(messagequeue.SubjectTaskDispatch)); got != 0 {
		t.Fatalf("expected no dispatch for disabled tenant, got %d", got)
	}
}

func TestSchedulerSkipsPausedAgent(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))
	store.agents[0].Status = agent.StatusPaused

	svc.Tick(context.Background(), now)

	if got := len(queue.messages(messagequeue.SubjectTaskDispatch)); got != 0 {
		t.Fatalf("expected no dispatch for paused agent, got %d", got)
	}
	// The occurrence still advances so it does not pile up.
	sc, _ := store.GetSchedule(context.Background(), "sched-1")
	if !sc.NextRunAt.After(now) {
		t.Fatalf("expected schedule advanced, got %v", sc.NextRunAt)
	}
}

func TestRegisterSchedule(t *testing.T) {
	store, _, svc := schedulerFixture(time.Now().UTC().Add(time.Hour))

	sc, err := svc.RegisterSchedule(context.Background(), schedule.CreateRequest{
		AgentID: "agent-1",
		Rule:    "every:30m",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.AgentID != "agent-1" {
		t.Fatalf("expected agent-1, got %q", sc.AgentID)
	}
	if sc.NextRunAt.IsZero() {
		t.Fatal("expected next run to be seeded")
	}
	if len(store.schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(store.schedules))
	}
}

func TestRegisterScheduleInvalidRule(t *testing.T) {
	_, _, svc := schedulerFixture(time.Now().UTC())

	_, err := svc.RegisterSchedule(context.Background(), schedule.CreateRequest{
		AgentID: "agent-1",
		Rule:    "sometimes",
	})
	if err == nil {
		t.Fatal("expected error for invalid rule, got nil")
	}
}

func TestRegisterScheduleInactiveAgent(t *testing.T) {
	store, _, svc := schedulerFixture(time.Now().UTC())
	store.agents[0].Status = agent.StatusPaused

	_, err := svc.RegisterSchedule(context.Background(), schedule.CreateRequest{
		AgentID: "agent-1",
		Rule:    "every:30m",
	})
	if err == nil {
		t.Fatal("expected error for inactive agent, got nil")
	}
}

func TestSchedulerPublishFailureFinalizesTask(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))
	queue.publishErr = errors.New("nats down")

	svc.Tick(context.Background(), now)

	store.mu.Lock()
	var created *task.Task
	for _, tk := range store.tasks {
		created = tk
	}
	store.mu.Unlock()
	if created == nil {
		t.Fatal("expected task record created")
	}
	if created.Status != task.StatusFailed {
		t.Fatalf("undispatched task must reach a terminal state, got %q", created.Status)
	}
	if created.Error == "" {
		t.Fatal("expected dispatch error recorded on task")
	}
}

func TestSchedulerReclaimsStaleInFlightSlot(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	store, queue, svc := schedulerFixture(now.Add(-time.Minute))

	// A terminal task whose result message never arrived: the schedule
	// must not stay occupied forever.
	store.tasks["task-lost"] = &task.Task{
		ID:         "task-lost",
		ScheduleID: "sched-1",
		TenantID:   "tn-1",
		Status:     task.StatusFailed,
		Error:      "deliver result: nats down",
	}
	svc.inFlight.Store("sched-1", "task-lost")

	svc.Tick(context.Background(), now)

	msgs := queue.messages(messagequeue.SubjectTaskDispatch)
	if len(msgs) != 1 {
		t.Fatalf("expected dispatch after stale slot reclaimed, got %d", len(msgs))
	}
	if tid, ok := svc.inFlight.Load("sched-1"); ok && tid == "task-lost" {
		t.Fatal("expected stale slot replaced")
	}
}
