// Package agent defines the Agent domain entity.
package agent

import (
	"fmt"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain"
)

// Capability identifies a unit of work an agent knows how to perform.
type Capability string

// Built-in capabilities. The executor maps each capability to a handler;
// a schedule referencing an agent without a matching handler fails permanently.
const (
	CapabilityEmissionsAnalysis Capability = "emissions_analysis"
	CapabilityComplianceScan    Capability = "compliance_scan"
	CapabilityEnergyOptimizer   Capability = "energy_optimizer"
	CapabilityAnomalyWatch      Capability = "anomaly_watch"
)

// Status represents the current state of an agent.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
	StatusRemoved Status = "removed"
)

// Agent represents a named capability bundle executed on a schedule for one
// tenant. Identity is immutable once registered; an agent is removed only by
// explicit de-registration.
type Agent struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	Status       Status       `json:"status"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Has reports whether the agent declares the given capability.
func (a *Agent) Has(c Capability) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// CreateRequest holds the fields needed to register a new agent.
type CreateRequest struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
}

// Validate checks the request for required fields.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: agent name is required", domain.ErrValidation)
	}
	if len(r.Capabilities) == 0 {
		return fmt.Errorf("%w: at least one capability is required", domain.ErrValidation)
	}
	return nil
}
