package http

import (
	"net/http"

	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/schedule"
	"github.com/blipee-dev/agentcore/internal/domain/tenant"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/service"
)

// Handlers bundles the services exposed over the admin API.
type Handlers struct {
	Tenants      *service.TenantService
	Registry     *service.RegistryService
	Scheduler    *service.SchedulerService
	Approvals    *service.ApprovalService
	Orchestrator *service.OrchestratorService
}

// --- Tenants ---

func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Tenants.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "tenants not found")
		return
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tenants.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tenants.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.UpdateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tenants.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// TenantStatus serves the aggregated orchestration health for one tenant.
// The path ID wins over the X-Tenant-ID header so operators can inspect any
// tenant from the default scope.
func (h *Handlers) TenantStatus(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	ctx := middleware.WithTenantID(r.Context(), id)
	st, err := h.Orchestrator.Status(ctx, id)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- Agents ---

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Registry.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}
	ag, err := h.Registry.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ag)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	ag, err := h.Registry.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, ag)
}

func (h *Handlers) PauseAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Pause(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ResumeAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Resume(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeregisterAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Deregister(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Schedules ---

func (h *Handlers) RegisterSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[schedule.CreateRequest](w, r)
	if !ok {
		return
	}
	sc, err := h.Scheduler.RegisterSchedule(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// --- Approvals ---

func (h *Handlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	state := approval.State(r.URL.Query().Get("state"))
	approvals, err := h.Approvals.List(r.Context(), state)
	if err != nil {
		writeDomainError(w, err, "approvals not found")
		return
	}
	if approvals == nil {
		approvals = []approval.Request{}
	}
	writeJSON(w, http.StatusOK, approvals)
}

type decideRequest struct {
	Decision  string `json:"decision"` // "approve" or "deny"
	DecidedBy string `json:"decided_by"`
}

func (h *Handlers) DecideApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decideRequest](w, r)
	if !ok {
		return
	}
	d := approval.Decision(req.Decision)
	if !d.Valid() {
		writeError(w, http.StatusBadRequest, "decision must be 'approve' or 'deny'")
		return
	}
	res, err := h.Approvals.Decide(r.Context(), urlParam(r, "id"), d, req.DecidedBy)
	if err != nil {
		writeDomainError(w, err, "approval not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
