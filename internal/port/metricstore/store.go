// Package metricstore defines the port for reading tenant telemetry series
// (meter readings, emissions factors, compliance checkpoints) that agent
// capability handlers analyze.
package metricstore

import (
	"context"
	"time"
)

// Point is a single observation in a series.
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Series is a named sequence of points for one tenant.
type Series struct {
	TenantID string  `json:"tenant_id"`
	Name     string  `json:"name"` // e.g. "energy.kwh", "emissions.scope2"
	Unit     string  `json:"unit"`
	Points   []Point `json:"points"`
}

// Reader is the port interface for querying telemetry series.
type Reader interface {
	// Query returns the named series for the tenant on the context,
	// restricted to [from, to).
	Query(ctx context.Context, name string, from, to time.Time) (*Series, error)

	// Names lists the series available to the tenant on the context.
	Names(ctx context.Context) ([]string, error)
}
