package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentcore"

// StartTaskSpan starts a span covering one task execution attempt.
func StartTaskSpan(ctx context.Context, taskID, tenantID, capability string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("tenant.id", tenantID),
			attribute.String("task.capability", capability),
		),
	)
}

// StartDecisionSpan starts a span covering risk classification of one action.
func StartDecisionSpan(ctx context.Context, actionID, tenantID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decision",
		trace.WithAttributes(
			attribute.String("action.id", actionID),
			attribute.String("tenant.id", tenantID),
		),
	)
}
