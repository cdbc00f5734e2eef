package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blipee-dev/agentcore/internal/domain/action"
)

// --- Actions ---

func (s *Store) GetAction(ctx context.Context, id string) (*action.Action, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, task_id, tenant_id, payload, magnitude, reversibility, confidence,
		        risk_score, classification, policy_version, committed, created_at
		 FROM actions WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	a, err := scanAction(row)
	if err != nil {
		return nil, notFoundWrap(err, "get action %s", id)
	}
	return &a, nil
}

func (s *Store) CreateAction(ctx context.Context, a *action.Action) error {
	payloadJSON, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal action payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO actions (id, task_id, tenant_id, payload, magnitude, reversibility, confidence,
		                      risk_score, classification, policy_version, committed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.TaskID, a.TenantID, payloadJSON,
		a.Risk.Magnitude, a.Risk.Reversibility, a.Risk.Confidence,
		a.RiskScore, string(a.Classification), a.PolicyVersion, a.Committed, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create action %s: %w", a.ID, err)
	}
	return nil
}

// MarkActionCommitted flips the committed flag exactly once; a second call
// for the same action finds no uncommitted row and reports ErrNotFound.
func (s *Store) MarkActionCommitted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE actions SET committed = TRUE
		 WHERE id = $1 AND tenant_id = $2 AND committed = FALSE`,
		id, tenantFromCtx(ctx))
	return execExpectOne(tag, err, "mark action %s committed", id)
}

func scanAction(row scannable) (action.Action, error) {
	var a action.Action
	var payloadJSON []byte
	var classification string
	if err := row.Scan(&a.ID, &a.TaskID, &a.TenantID, &payloadJSON,
		&a.Risk.Magnitude, &a.Risk.Reversibility, &a.Risk.Confidence,
		&a.RiskScore, &classification, &a.PolicyVersion, &a.Committed, &a.CreatedAt); err != nil {
		return action.Action{}, err
	}
	if err := json.Unmarshal(payloadJSON, &a.Payload); err != nil {
		return action.Action{}, fmt.Errorf("unmarshal action payload: %w", err)
	}
	a.Classification = action.Classification(classification)
	return a, nil
}
