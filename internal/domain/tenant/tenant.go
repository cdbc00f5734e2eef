// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import "time"

// Tenant represents an isolated tenant in the system.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Enabled   bool      `json:"enabled"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings holds tenant-level orchestration configuration.
// Zero values fall back to process defaults at the point of use.
type Settings struct {
	// LowThreshold and HighThreshold override the decision policy cut-offs
	// for this tenant. Both zero means "use the default policy".
	LowThreshold  float64 `json:"low_threshold,omitempty"`
	HighThreshold float64 `json:"high_threshold,omitempty"`

	// ApprovalTTL overrides the default time a NeedsApproval action may wait
	// for a human decision before expiring.
	ApprovalTTL time.Duration `json:"approval_ttl,omitempty"`
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UpdateRequest holds the fields that can be updated on a tenant.
type UpdateRequest struct {
	Name     string    `json:"name,omitempty"`
	Enabled  *bool     `json:"enabled,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}
