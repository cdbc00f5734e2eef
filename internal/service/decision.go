package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	adapterotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/decision"
	"github.com/blipee-dev/agentcore/internal/port/cache"
	"github.com/blipee-dev/agentcore/internal/port/database"
)

// DecisionService classifies proposed actions against the tenant's risk
// policy. Classification is deterministic: the same inputs under the same
// policy version always produce the same verdict.
type DecisionService struct {
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *adapterotel.Metrics
}

// NewDecisionService creates a new DecisionService. cache may be nil; the
// service then reads tenant thresholds from the store on every call.
func NewDecisionService(store database.Store, c cache.Cache, cacheTTL time.Duration) *DecisionService {
	return &DecisionService{store: store, cache: c, cacheTTL: cacheTTL}
}

// SetMetrics attaches metric instruments for classification counters.
func (s *DecisionService) SetMetrics(m *adapterotel.Metrics) {
	s.metrics = m
}

// Classify scores the action's declared risk inputs and stamps the action
// with its score, classification, and the policy version that produced it.
func (s *DecisionService) Classify(ctx context.Context, a *action.Action) error {
	if err := a.Payload.Validate(); err != nil {
		return fmt.Errorf("classify action %s: %w", a.ID, err)
	}

	ctx, span := adapterotel.StartDecisionSpan(ctx, a.ID, a.TenantID)
	defer span.End()

	t, err := s.thresholds(ctx, a.TenantID)
	if err != nil {
		return fmt.Errorf("classify action %s: %w", a.ID, err)
	}

	a.RiskScore = decision.Score(a.Risk)
	a.Classification = decision.Classify(a.RiskScore, t)
	a.PolicyVersion = t.Version

	if s.metrics != nil {
		s.metrics.ActionsClassified.Add(ctx, 1,
			metric.WithAttributes(attribute.String("classification", string(a.Classification))))
		s.metrics.RiskScore.Record(ctx, a.RiskScore)
	}

	slog.Info("action classified",
		"action_id", a.ID,
		"tenant_id", a.TenantID,
		"risk_score", a.RiskScore,
		"classification", a.Classification,
		"policy_version", a.PolicyVersion,
	)
	return nil
}

// thresholds returns the tenant's policy thresholds, falling back to the
// default policy when the tenant has no override.
func (s *DecisionService) thresholds(ctx context.Context, tenantID string) (decision.Thresholds, error) {
	key := "thresholds:" + tenantID

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var t decision.Thresholds
			if err := json.Unmarshal(data, &t); err == nil {
				return t, nil
			}
		}
	}

	t := decision.DefaultThresholds
	tn, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return decision.Thresholds{}, fmt.Errorf("load tenant policy: %w", err)
	}
	if tn.Settings.LowThreshold != 0 || tn.Settings.HighThreshold != 0 {
		t.Low = tn.Settings.LowThreshold
		t.High = tn.Settings.HighThreshold
		t.Version = decision.TenantOverrideVersion
	}
	if err := t.Validate(); err != nil {
		slog.Warn("invalid tenant thresholds, using defaults", "tenant_id", tenantID, "error", err)
		t = decision.DefaultThresholds
	}

	if s.cache != nil {
		if data, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return t, nil
}

// InvalidateThresholds drops the cached policy for a tenant, forcing the
// next classification to re-read the store.
func (s *DecisionService) InvalidateThresholds(ctx context.Context, tenantID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "thresholds:"+tenantID)
	}
}
