package postgres

import (
	"context"
	"fmt"

	"github.com/blipee-dev/agentcore/internal/domain/event"
)

// --- Events ---

// AppendEvent persists one audit record. The events table is append-only;
// rows are never updated or deleted.
func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (tenant_id, agent_id, task_id, type, payload, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.TenantID, nullIfEmpty(e.AgentID), nullIfEmpty(e.TaskID), string(e.Type),
		[]byte(e.Payload), e.RequestID, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.Type, err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, taskID string) ([]event.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, agent_id, task_id, type, payload, request_id, created_at
		 FROM events WHERE task_id = $1 AND tenant_id = $2 ORDER BY id ASC`,
		taskID, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var agentID, tID *string
		if err := rows.Scan(&e.ID, &e.TenantID, &agentID, &tID, &e.Type, &e.Payload, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if agentID != nil {
			e.AgentID = *agentID
		}
		if tID != nil {
			e.TaskID = *tID
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
