package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain/schedule"
)

// --- Schedules ---

func (s *Store) ListSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, agent_id, rule, next_run_at, enabled, created_at, updated_at
		 FROM schedules WHERE tenant_id = $1 ORDER BY created_at ASC`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []schedule.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*schedule.Schedule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, agent_id, rule, next_run_at, enabled, created_at, updated_at
		 FROM schedules WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	sc, err := scanSchedule(row)
	if err != nil {
		return nil, notFoundWrap(err, "get schedule %s", id)
	}
	return &sc, nil
}

func (s *Store) CreateSchedule(ctx context.Context, req schedule.CreateRequest) (*schedule.Schedule, error) {
	rule, err := schedule.ParseRule(req.Rule)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO schedules (tenant_id, agent_id, rule, next_run_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, agent_id, rule, next_run_at, enabled, created_at, updated_at`,
		tenantFromCtx(ctx), req.AgentID, req.Rule, rule.NextAfter(time.Now().UTC()))
	sc, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return &sc, nil
}

func (s *Store) UpdateScheduleNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET next_run_at = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx), nextRunAt)
	return execExpectOne(tag, err, "update schedule %s next run", id)
}

func (s *Store) SetScheduleEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET enabled = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx), enabled)
	return execExpectOne(tag, err, "set schedule %s enabled", id)
}

func scanSchedule(row scannable) (schedule.Schedule, error) {
	var sc schedule.Schedule
	var ruleStr string
	if err := row.Scan(&sc.ID, &sc.TenantID, &sc.AgentID, &ruleStr, &sc.NextRunAt, &sc.Enabled, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return schedule.Schedule{}, err
	}
	rule, err := schedule.ParseRule(ruleStr)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("stored rule %q: %w", ruleStr, err)
	}
	sc.Rule = rule
	return sc, nil
}
