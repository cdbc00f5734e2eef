package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/tenant"
	"github.com/blipee-dev/agentcore/internal/port/database"
)

// TenantService manages tenant lifecycle.
type TenantService struct {
	store database.Store
}

// NewTenantService creates a new TenantService.
func NewTenantService(store database.Store) *TenantService {
	return &TenantService{store: store}
}

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// Create validates and creates a new tenant.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", domain.ErrValidation)
	}
	if !slugRegex.MatchString(req.Slug) {
		return nil, fmt.Errorf("%w: invalid slug %q, must be 3-64 lowercase alphanumeric characters or hyphens", domain.ErrValidation, req.Slug)
	}
	return s.store.CreateTenant(ctx, req)
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Update modifies an existing tenant. Settings updates are validated against
// the decision policy constraints before they are persisted.
func (s *TenantService) Update(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	if req.Settings != nil {
		if err := validateSettings(req.Settings); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateTenant(ctx, id, req)
}

func validateSettings(s *tenant.Settings) error {
	if s.LowThreshold == 0 && s.HighThreshold == 0 {
		return nil // defaults apply
	}
	if s.LowThreshold < 0 || s.HighThreshold > 1 || s.LowThreshold >= s.HighThreshold {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= low < high <= 1, got %.2f/%.2f",
			domain.ErrValidation, s.LowThreshold, s.HighThreshold)
	}
	return nil
}
