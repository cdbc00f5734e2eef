package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
)

// --- Approvals ---

func (s *Store) ListApprovals(ctx context.Context, state approval.State) ([]approval.Request, error) {
	query := `SELECT id, action_id, task_id, tenant_id, state, created_at, expires_at, escalated_at, decided_by, decided_at
	          FROM approvals WHERE tenant_id = $1`
	args := []any{tenantFromCtx(ctx)}
	if state != "" {
		query += ` AND state = $2`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, r)
	}
	return approvals, rows.Err()
}

func (s *Store) GetApproval(ctx context.Context, id string) (*approval.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, action_id, task_id, tenant_id, state, created_at, expires_at, escalated_at, decided_by, decided_at
		 FROM approvals WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	r, err := scanApproval(row)
	if err != nil {
		return nil, notFoundWrap(err, "get approval %s", id)
	}
	return &r, nil
}

func (s *Store) CreateApproval(ctx context.Context, req *approval.Request) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO approvals (id, action_id, task_id, tenant_id, state, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.ActionID, req.TaskID, req.TenantID, string(req.State), req.CreatedAt, req.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create approval %s: %w", req.ID, err)
	}
	return nil
}

// DecideApproval records a human verdict. The state guard makes the
// transition first-writer-wins: a request already out of pending reports
// ErrAlreadyDecided.
func (s *Store) DecideApproval(ctx context.Context, id string, state approval.State, decidedBy string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE approvals SET state = $3, decided_by = $4, decided_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND state = 'pending'`,
		id, tenantFromCtx(ctx), string(state), nullIfEmpty(decidedBy))
	if err != nil {
		return fmt.Errorf("decide approval %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already decided.
		if _, getErr := s.GetApproval(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("decide approval %s: %w", id, domain.ErrAlreadyDecided)
	}
	return nil
}

func (s *Store) MarkApprovalEscalated(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE approvals SET escalated_at = $3
		 WHERE id = $1 AND tenant_id = $2 AND state = 'pending' AND escalated_at IS NULL`,
		id, tenantFromCtx(ctx), at)
	return execExpectOne(tag, err, "mark approval %s escalated", id)
}

// ExpireApprovals transitions every pending request past its deadline to
// expired and returns the affected rows. Runs across all tenants; the sweep
// is a system process, not a tenant request.
func (s *Store) ExpireApprovals(ctx context.Context, cutoff time.Time) ([]approval.Request, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE approvals SET state = 'expired', decided_at = now()
		 WHERE state = 'pending' AND expires_at <= $1
		 RETURNING id, action_id, task_id, tenant_id, state, created_at, expires_at, escalated_at, decided_by, decided_at`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire approvals: %w", err)
	}
	defer rows.Close()

	var expired []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, r)
	}
	return expired, rows.Err()
}

func scanApproval(row scannable) (approval.Request, error) {
	var r approval.Request
	var decidedBy *string
	if err := row.Scan(&r.ID, &r.ActionID, &r.TaskID, &r.TenantID, &r.State,
		&r.CreatedAt, &r.ExpiresAt, &r.EscalatedAt, &decidedBy, &r.DecidedAt); err != nil {
		return approval.Request{}, err
	}
	if decidedBy != nil {
		r.DecidedBy = *decidedBy
	}
	return r, nil
}
