package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blipee-dev/agentcore/internal/port/metricstore"
)

// MetricReader implements metricstore.Reader over the readings table.
type MetricReader struct {
	pool *pgxpool.Pool
}

// NewMetricReader creates a MetricReader backed by the given pool.
func NewMetricReader(pool *pgxpool.Pool) *MetricReader {
	return &MetricReader{pool: pool}
}

func (m *MetricReader) Query(ctx context.Context, name string, from, to time.Time) (*metricstore.Series, error) {
	tenantID := tenantFromCtx(ctx)
	rows, err := m.pool.Query(ctx,
		`SELECT at, value, unit FROM readings
		 WHERE tenant_id = $1 AND name = $2 AND at >= $3 AND at < $4
		 ORDER BY at ASC`,
		tenantID, name, from, to)
	if err != nil {
		return nil, fmt.Errorf("query readings %s: %w", name, err)
	}
	defer rows.Close()

	s := &metricstore.Series{TenantID: tenantID, Name: name}
	for rows.Next() {
		var p metricstore.Point
		var unit string
		if err := rows.Scan(&p.At, &p.Value, &unit); err != nil {
			return nil, err
		}
		s.Unit = unit
		s.Points = append(s.Points, p)
	}
	return s, rows.Err()
}

func (m *MetricReader) Names(ctx context.Context) ([]string, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT DISTINCT name FROM readings WHERE tenant_id = $1 ORDER BY name`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list reading names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
