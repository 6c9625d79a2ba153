package ephemeris

import (
	"context"
	"time"

	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/models"
)

// Instrumented counts lookups and failures of the wrapped oracle.
type Instrumented struct {
	next    Oracle
	metrics *metrics.Metrics
}

func NewInstrumented(next Oracle, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (o *Instrumented) Longitude(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	v, err := o.next.Longitude(ctx, body, t)
	o.metrics.OracleCall(string(body), "longitude", err)
	return v, err
}

func (o *Instrumented) Velocity(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	v, err := o.next.Velocity(ctx, body, t)
	o.metrics.OracleCall(string(body), "velocity", err)
	return v, err
}
