package postgres

import (
	"context"
	"fmt"

	"github.com/blipee-dev/agentcore/internal/domain/task"
)

// --- Tasks ---

func (s *Store) ListTasks(ctx context.Context, scheduleID string) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, schedule_id, agent_id, tenant_id, capability, status, attempt, error, started_at, completed_at
		 FROM tasks WHERE schedule_id = $1 AND tenant_id = $2 ORDER BY started_at DESC`,
		scheduleID, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, schedule_id, agent_id, tenant_id, capability, status, attempt, error, started_at, completed_at
		 FROM tasks WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, schedule_id, agent_id, tenant_id, capability, status, attempt, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.ScheduleID, t.AgentID, t.TenantID, t.Capability, string(t.Status), t.Attempt, t.StartedAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTaskStatus moves a task to the given status. Terminal statuses also
// stamp completed_at; a task already in a terminal state is never changed.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status task.Status, attempt int, taskErr string) error {
	completed := "NULL"
	if status.IsTerminal() {
		completed = "now()"
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $3, attempt = $4, error = $5, completed_at = `+completed+`
		 WHERE id = $1 AND tenant_id = $2
		   AND status NOT IN ('succeeded', 'failed')`,
		id, tenantFromCtx(ctx), string(status), attempt, taskErr)
	return execExpectOne(tag, err, "update task %s status", id)
}

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	if err := row.Scan(&t.ID, &t.ScheduleID, &t.AgentID, &t.TenantID, &t.Capability, &t.Status, &t.Attempt, &t.Error, &t.StartedAt, &t.CompletedAt); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// --- Results ---

func (s *Store) CreateResult(ctx context.Context, r *task.Result) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (task_id, tenant_id, summary, confidence, committed_action_ids, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.TaskID, r.TenantID, r.Summary, r.Confidence, r.CommittedActionIDs, r.Outcome, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create result for task %s: %w", r.TaskID, err)
	}
	return nil
}

func (s *Store) ListResults(ctx context.Context, agentID string, limit int) ([]task.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT r.task_id, r.tenant_id, r.summary, r.confidence, r.committed_action_ids, r.outcome, r.created_at
		 FROM results r JOIN tasks t ON t.id = r.task_id
		 WHERE t.agent_id = $1 AND r.tenant_id = $2
		 ORDER BY r.created_at DESC LIMIT $3`,
		agentID, tenantFromCtx(ctx), limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []task.Result
	for rows.Next() {
		var r task.Result
		if err := rows.Scan(&r.TaskID, &r.TenantID, &r.Summary, &r.Confidence, &r.CommittedActionIDs, &r.Outcome, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
