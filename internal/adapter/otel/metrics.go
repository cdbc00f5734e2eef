package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentcore"

// Metrics holds all agentcore metric instruments.
type Metrics struct {
	TasksDispatched   metric.Int64Counter
	TasksSucceeded    metric.Int64Counter
	TasksFailed       metric.Int64Counter
	TaskRetries       metric.Int64Counter
	ActionsClassified metric.Int64Counter
	ActionsCommitted  metric.Int64Counter
	ApprovalsExpired  metric.Int64Counter
	TaskDuration      metric.Float64Histogram
	RiskScore         metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksDispatched, err = meter.Int64Counter("agentcore.tasks.dispatched",
		metric.WithDescription("Number of tasks dispatched by the scheduler"))
	if err != nil {
		return nil, err
	}

	m.TasksSucceeded, err = meter.Int64Counter("agentcore.tasks.succeeded",
		metric.WithDescription("Number of tasks that reached succeeded"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("agentcore.tasks.failed",
		metric.WithDescription("Number of tasks that reached failed"))
	if err != nil {
		return nil, err
	}

	m.TaskRetries, err = meter.Int64Counter("agentcore.tasks.retries",
		metric.WithDescription("Number of task retry attempts"))
	if err != nil {
		return nil, err
	}

	m.ActionsClassified, err = meter.Int64Counter("agentcore.actions.classified",
		metric.WithDescription("Number of actions classified by the decision engine"))
	if err != nil {
		return nil, err
	}

	m.ActionsCommitted, err = meter.Int64Counter("agentcore.actions.committed",
		metric.WithDescription("Number of actions committed"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsExpired, err = meter.Int64Counter("agentcore.approvals.expired",
		metric.WithDescription("Number of approval requests that expired"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("agentcore.task.duration_seconds",
		metric.WithDescription("Task execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.RiskScore, err = meter.Float64Histogram("agentcore.action.risk_score",
		metric.WithDescription("Risk score distribution of classified actions"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
