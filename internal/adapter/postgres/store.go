package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/tenant"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// --- Tenants ---

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, enabled, settings, created_at, updated_at
		 FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, enabled, settings, created_at, updated_at
		 FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, slug) VALUES ($1, $2)
		 RETURNING id, name, slug, enabled, settings, created_at, updated_at`,
		req.Name, req.Slug)
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) UpdateTenant(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	cur, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	name := cur.Name
	if req.Name != "" {
		name = req.Name
	}
	enabled := cur.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	settings := cur.Settings
	if req.Settings != nil {
		settings = *req.Settings
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal tenant settings: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE tenants SET name = $2, enabled = $3, settings = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, slug, enabled, settings, created_at, updated_at`,
		id, name, enabled, settingsJSON)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "update tenant %s", id)
	}
	return &t, nil
}

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var settingsJSON []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Enabled, &settingsJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return tenant.Tenant{}, err
	}
	if settingsJSON != nil {
		_ = json.Unmarshal(settingsJSON, &t.Settings)
	}
	return t, nil
}

// --- Agents ---

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, capabilities, status, version, created_at, updated_at
		 FROM agents WHERE tenant_id = $1 AND status != 'removed' ORDER BY created_at ASC`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, capabilities, status, version, created_at, updated_at
		 FROM agents WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx))
	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	caps := make([]string, len(req.Capabilities))
	for i, c := range req.Capabilities {
		caps[i] = string(c)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (tenant_id, name, capabilities, status)
		 VALUES ($1, $2, $3, 'active')
		 RETURNING id, tenant_id, name, capabilities, status, version, created_at, updated_at`,
		tenantFromCtx(ctx), req.Name, caps)
	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

func (s *Store) UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET status = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx), string(status))
	return execExpectOne(tag, err, "update agent %s status", id)
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	var caps []string
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &caps, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return agent.Agent{}, err
	}
	a.Capabilities = make([]agent.Capability, len(caps))
	for i, c := range caps {
		a.Capabilities[i] = agent.Capability(c)
	}
	return a, nil
}
