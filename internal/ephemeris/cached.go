package ephemeris

import (
	"context"
	"time"

	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/storage"
)

// Cached serves samples from a sqlite cache and fills it from next on miss.
// Cache write failures are logged and do not fail the lookup.
type Cached struct {
	next    Oracle
	store   *storage.Storage
	metrics *metrics.Metrics
}

// NewCached wraps next. m may be nil.
func NewCached(next Oracle, store *storage.Storage, m *metrics.Metrics) *Cached {
	return &Cached{next: next, store: store, metrics: m}
}

func (c *Cached) Longitude(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	return c.lookup(ctx, body, storage.Longitude, t, c.next.Longitude)
}

func (c *Cached) Velocity(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	return c.lookup(ctx, body, storage.Velocity, t, c.next.Velocity)
}

type fetchFunc func(ctx context.Context, body models.Body, t time.Time) (float64, error)

func (c *Cached) lookup(ctx context.Context, body models.Body, q storage.Quantity, t time.Time, fetch fetchFunc) (float64, error) {
	v, ok, err := c.store.Get(body, q, t)
	if err != nil {
		logger.Warn("Sample cache read failed for %s %s: %v", body, q, err)
	} else if ok {
		c.metrics.CacheHit()
		return v, nil
	}
	c.metrics.CacheMiss()

	v, err = fetch(ctx, body, t)
	if err != nil {
		return 0, err
	}
	if err := c.store.Put(body, q, t, v); err != nil {
		logger.Warn("Sample cache write failed for %s %s: %v", body, q, err)
	}
	return v, nil
}
