package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blipee-dev/agentcore/internal/domain/action"
	"github.com/blipee-dev/agentcore/internal/port/metricstore"
)

func seriesOf(name, unit string, values ...float64) *metricstore.Series {
	s := &metricstore.Series{TenantID: "tn-1", Name: name, Unit: unit}
	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for _, v := range values {
		s.Points = append(s.Points, metricstore.Point{At: at, Value: v})
		at = at.Add(time.Hour)
	}
	return s
}

func TestEmissionsAnalysisUpTrendProposesAlert(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"emissions.scope2": seriesOf("emissions.scope2", "tCO2e", 100, 105, 120),
	}}
	handler := emissionsAnalysis(nil, reader)

	out, err := handler(context.Background(), testDispatch("emissions_analysis"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload == nil {
		t.Fatal("expected a proposed alert for rising emissions")
	}
	if out.Payload.Kind != action.KindSendAlert {
		t.Fatalf("expected send_alert, got %q", out.Payload.Kind)
	}
	if err := out.Payload.Validate(); err != nil {
		t.Fatalf("proposed payload invalid: %v", err)
	}
}

func TestEmissionsAnalysisFlatTrendNoAction(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"emissions.scope2": seriesOf("emissions.scope2", "tCO2e", 100, 101, 100),
	}}
	handler := emissionsAnalysis(nil, reader)

	out, err := handler(context.Background(), testDispatch("emissions_analysis"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload != nil {
		t.Fatalf("flat trend must not propose an action, got %+v", out.Payload)
	}
}

func TestEmissionsAnalysisUsesCompleterSummary(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"emissions.scope2": seriesOf("emissions.scope2", "tCO2e", 100, 120),
	}}
	handler := emissionsAnalysis(&mockCompleter{text: "Emissions rose sharply."}, reader)

	out, err := handler(context.Background(), testDispatch("emissions_analysis"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Summary != "Emissions rose sharply." {
		t.Fatalf("expected completer summary, got %q", out.Summary)
	}
}

func TestEmissionsAnalysisCompleterFailureFallsBack(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"emissions.scope2": seriesOf("emissions.scope2", "tCO2e", 100, 120),
	}}
	handler := emissionsAnalysis(&mockCompleter{err: errors.New("llm down")}, reader)

	out, err := handler(context.Background(), testDispatch("emissions_analysis"))
	if err != nil {
		t.Fatalf("completer failure must not fail the task: %v", err)
	}
	if out.Summary == "" {
		t.Fatal("expected fallback summary")
	}
}

func TestComplianceScanFailuresProposeWorkOrder(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"compliance.checkpoints": seriesOf("compliance.checkpoints", "pass", 1, 0, 1, 0),
	}}
	handler := complianceScan(nil, reader)

	out, err := handler(context.Background(), testDispatch("compliance_scan"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload == nil || out.Payload.Kind != action.KindCreateWorkOrder {
		t.Fatalf("expected work order proposal, got %+v", out.Payload)
	}
	if err := out.Payload.Validate(); err != nil {
		t.Fatalf("proposed payload invalid: %v", err)
	}
}

func TestComplianceScanAllPassingNoAction(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"compliance.checkpoints": seriesOf("compliance.checkpoints", "pass", 1, 1, 1),
	}}
	handler := complianceScan(nil, reader)

	out, err := handler(context.Background(), testDispatch("compliance_scan"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload != nil {
		t.Fatalf("passing scan must not propose an action, got %+v", out.Payload)
	}
}

func TestEnergyOptimizerAboveBaselineProposesSetpoint(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"energy.kwh": seriesOf("energy.kwh", "kWh", 100, 150, 160, 170),
	}}
	handler := energyOptimizer(reader)

	out, err := handler(context.Background(), testDispatch("energy_optimizer"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload == nil || out.Payload.Kind != action.KindAdjustSetpoint {
		t.Fatalf("expected setpoint proposal, got %+v", out.Payload)
	}
	if err := out.Payload.Validate(); err != nil {
		t.Fatalf("proposed payload invalid: %v", err)
	}
	// Touching live equipment: the declared risk must not be trivial.
	if out.Risk.Magnitude < 0.5 {
		t.Fatalf("setpoint changes carry real magnitude, got %v", out.Risk.Magnitude)
	}
}

func TestEnergyOptimizerWithinBaselineNoAction(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"energy.kwh": seriesOf("energy.kwh", "kWh", 100, 102, 98, 101),
	}}
	handler := energyOptimizer(reader)

	out, err := handler(context.Background(), testDispatch("energy_optimizer"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload != nil {
		t.Fatalf("consumption within baseline must not propose an action, got %+v", out.Payload)
	}
}

func TestAnomalyWatchDetectsOutlier(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"energy.kwh": seriesOf("energy.kwh", "kWh", 100, 101, 99, 100, 102, 500),
	}}
	handler := anomalyWatch(reader)

	out, err := handler(context.Background(), testDispatch("anomaly_watch"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload == nil || out.Payload.Kind != action.KindSendAlert {
		t.Fatalf("expected anomaly alert, got %+v", out.Payload)
	}
	if out.Payload.Alert.Severity != "critical" {
		t.Fatalf("expected critical severity, got %q", out.Payload.Alert.Severity)
	}
}

func TestAnomalyWatchSteadySeriesNoAction(t *testing.T) {
	reader := &mockReader{series: map[string]*metricstore.Series{
		"energy.kwh": seriesOf("energy.kwh", "kWh", 100, 101, 99, 100, 101),
	}}
	handler := anomalyWatch(reader)

	out, err := handler(context.Background(), testDispatch("anomaly_watch"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Payload != nil {
		t.Fatalf("steady series must not alert, got %+v", out.Payload)
	}
}

func TestHandlersToleratesEmptyWindows(t *testing.T) {
	reader := &mockReader{} // every query returns an empty series
	handlers := builtinHandlers(nil, reader)

	for capability, handler := range handlers {
		out, err := handler(context.Background(), testDispatch(capability))
		if err != nil {
			t.Errorf("%s: unexpected error on empty window: %v", capability, err)
			continue
		}
		if out.Payload != nil {
			t.Errorf("%s: empty window must not propose an action", capability)
		}
	}
}

func TestHandlersReaderFailureIsTransient(t *testing.T) {
	reader := &mockReader{err: errors.New("db down")}
	handlers := builtinHandlers(nil, reader)

	for capability, handler := range handlers {
		_, err := handler(context.Background(), testDispatch(capability))
		if err == nil {
			t.Errorf("%s: expected error when the reader fails", capability)
			continue
		}
		if isPermanent(err) {
			t.Errorf("%s: reader failures are retryable, got permanent error", capability)
		}
	}
}
