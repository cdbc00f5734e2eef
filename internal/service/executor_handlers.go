package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/domain/agent"
	"github.com/blipee-dev/agentcore/internal/port/completion"
	"github.com/blipee-dev/agentcore/internal/port/messagequeue"
	"github.com/blipee-dev/agentcore/internal/port/metricstore"
)

// handlerOutput is what a capability handler produces: a summary for the
// tenant, its confidence in that summary, and at most one proposed action.
type handlerOutput struct {
	Summary    string
	Confidence float64
	Payload    *action.Payload
	Risk       action.RiskInputs
}

// capabilityHandler executes one capability for one task attempt.
type capabilityHandler func(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, error)

// builtinHandlers maps each capability to its handler.
func builtinHandlers(complete completion.Completer, readings metricstore.Reader) map[string]capabilityHandler {
	return map[string]capabilityHandler{
		string(agent.CapabilityEmissionsAnalysis): emissionsAnalysis(complete, readings),
		string(agent.CapabilityComplianceScan):    complianceScan(complete, readings),
		string(agent.CapabilityEnergyOptimizer):   energyOptimizer(readings),
		string(agent.CapabilityAnomalyWatch):      anomalyWatch(readings),
	}
}

// emissionsAnalysis summarizes the last 24h of scope-2 emissions and raises
// an informational alert when the trend is up.
func emissionsAnalysis(complete completion.Completer, readings metricstore.Reader) capabilityHandler {
	return func(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, error) {
		series, err := readings.Query(ctx, "emissions.scope2", d.DueAt.Add(-24*time.Hour), d.DueAt)
		if err != nil {
			return nil, fmt.Errorf("query emissions: %w", err)
		}
		if len(series.Points) == 0 {
			return &handlerOutput{Summary: "no emissions data in window", Confidence: 1}, nil
		}

		first, last := series.Points[0].Value, series.Points[len(series.Points)-1].Value
		trend := "flat"
		switch {
		case last > first*1.05:
			trend = "up"
		case last < first*0.95:
			trend = "down"
		}

		summary := fmt.Sprintf("scope-2 emissions %s over 24h (%.1f -> %.1f %s)", trend, first, last, series.Unit)
		if complete != nil {
			resp, cerr := complete.Complete(ctx, completion.Request{
				Model:  "gpt-4o-mini",
				System: "You summarize emissions telemetry for sustainability managers in one sentence.",
				Prompt: summary,
			})
			if cerr == nil && resp.Text != "" {
				summary = resp.Text
			}
		}

		out := &handlerOutput{Summary: summary, Confidence: 0.9}
		if trend == "up" {
			out.Payload = &action.Payload{
				Kind: action.KindSendAlert,
				Alert: &action.AlertPayload{
					Title:    "Emissions trending up",
					Body:     summary,
					Severity: "warning",
				},
			}
			out.Risk = action.RiskInputs{Magnitude: 0.1, Reversibility: 1, Confidence: 0.9}
		}
		return out, nil
	}
}

// complianceScan checks the compliance checkpoint series for failures and
// proposes a work order when any checkpoint is below passing.
func complianceScan(complete completion.Completer, readings metricstore.Reader) capabilityHandler {
	return func(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, error) {
		series, err := readings.Query(ctx, "compliance.checkpoints", d.DueAt.Add(-7*24*time.Hour), d.DueAt)
		if err != nil {
			return nil, fmt.Errorf("query compliance: %w", err)
		}

		failures := 0
		for _, p := range series.Points {
			if p.Value < 1 {
				failures++
			}
		}
		if failures == 0 {
			return &handlerOutput{Summary: "all compliance checkpoints passing", Confidence: 0.95}, nil
		}

		summary := fmt.Sprintf("%d of %d compliance checkpoints failing", failures, len(series.Points))
		if complete != nil {
			resp, cerr := complete.Complete(ctx, completion.Request{
				Model:  "gpt-4o-mini",
				System: "You write one-sentence remediation summaries for compliance findings.",
				Prompt: summary,
			})
			if cerr == nil && resp.Text != "" {
				summary = resp.Text
			}
		}

		return &handlerOutput{
			Summary:    summary,
			Confidence: 0.85,
			Payload: &action.Payload{
				Kind: action.KindCreateWorkOrder,
				WorkOrder: &action.WorkOrderPayload{
					SiteID:      d.TenantID,
					Description: summary,
					Priority:    2,
				},
			},
			Risk: action.RiskInputs{Magnitude: 0.4, Reversibility: 0.8, Confidence: 0.85},
		}, nil
	}
}

// energyOptimizer proposes a setpoint adjustment when average consumption
// runs well above the window baseline.
func energyOptimizer(readings metricstore.Reader) capabilityHandler {
	return func(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, error) {
		series, err := readings.Query(ctx, "energy.kwh", d.DueAt.Add(-24*time.Hour), d.DueAt)
		if err != nil {
			return nil, fmt.Errorf("query energy: %w", err)
		}
		if len(series.Points) < 2 {
			return &handlerOutput{Summary: "insufficient energy data in window", Confidence: 1}, nil
		}

		var sum float64
		for _, p := range series.Points {
			sum += p.Value
		}
		mean := sum / float64(len(series.Points))
		baseline := series.Points[0].Value
		if baseline <= 0 || mean <= baseline*1.2 {
			return &handlerOutput{
				Summary:    fmt.Sprintf("consumption within baseline (mean %.1f %s)", mean, series.Unit),
				Confidence: 0.9,
			}, nil
		}

		target := baseline * 1.1
		return &handlerOutput{
			Summary:    fmt.Sprintf("consumption %.0f%% above baseline, proposing setpoint %.1f", (mean/baseline-1)*100, target),
			Confidence: 0.75,
			Payload: &action.Payload{
				Kind: action.KindAdjustSetpoint,
				Setpoint: &action.SetpointPayload{
					DeviceID: "hvac-main",
					Metric:   "energy.kwh",
					Value:    target,
				},
			},
			// Setpoint changes touch live equipment: high magnitude, only
			// partly reversible once the control loop reacts.
			Risk: action.RiskInputs{Magnitude: 0.7, Reversibility: 0.5, Confidence: 0.75},
		}, nil
	}
}

// anomalyWatch alerts when the latest reading deviates more than three
// standard deviations from the window mean.
func anomalyWatch(readings metricstore.Reader) capabilityHandler {
	return func(ctx context.Context, d messagequeue.DispatchPayload) (*handlerOutput, error) {
		series, err := readings.Query(ctx, "energy.kwh", d.DueAt.Add(-6*time.Hour), d.DueAt)
		if err != nil {
			return nil, fmt.Errorf("query readings: %w", err)
		}
		n := len(series.Points)
		if n < 3 {
			return &handlerOutput{Summary: "insufficient data for anomaly detection", Confidence: 1}, nil
		}

		var sum, sumSq float64
		for _, p := range series.Points[:n-1] {
			sum += p.Value
			sumSq += p.Value * p.Value
		}
		mean := sum / float64(n-1)
		variance := sumSq/float64(n-1) - mean*mean
		stddev := math.Sqrt(math.Max(variance, 0))

		latest := series.Points[n-1].Value
		if stddev == 0 || math.Abs(latest-mean) <= 3*stddev {
			return &handlerOutput{Summary: "no anomalies detected", Confidence: 0.9}, nil
		}

		return &handlerOutput{
			Summary:    fmt.Sprintf("reading %.1f deviates from mean %.1f (stddev %.2f)", latest, mean, stddev),
			Confidence: 0.8,
			Payload: &action.Payload{
				Kind: action.KindSendAlert,
				Alert: &action.AlertPayload{
					Title:    "Anomalous meter reading",
					Body:     fmt.Sprintf("latest %s reading %.1f is outside 3 sigma of the 6h window", series.Name, latest),
					Severity: "critical",
				},
			},
			Risk: action.RiskInputs{Magnitude: 0.2, Reversibility: 1, Confidence: 0.8},
		}, nil
	}
}
