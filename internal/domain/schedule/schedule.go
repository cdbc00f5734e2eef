// Package schedule defines recurring schedules and their recurrence rules.
package schedule

import (
	"fmt"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain"
)

// Schedule binds an agent to a recurrence rule for one tenant.
// NextRunAt is advanced by the scheduler strictly before each dispatch, so a
// schedule can never fire twice for the same occurrence.
type Schedule struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	AgentID   string    `json:"agent_id"`
	Rule      Rule      `json:"rule"`
	NextRunAt time.Time `json:"next_run_at"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to register a new schedule.
type CreateRequest struct {
	AgentID string `json:"agent_id"`
	Rule    string `json:"rule"`
}

// Validate checks the request for required fields and a parseable rule.
func (r *CreateRequest) Validate() error {
	if r.AgentID == "" {
		return fmt.Errorf("%w: agent_id is required", domain.ErrValidation)
	}
	if err := ValidateRule(r.Rule); err != nil {
		return fmt.Errorf("%w: rule: %v", domain.ErrValidation, err)
	}
	return nil
}
