package ephemeris

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/storage"
)

func utc(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAngles(t *testing.T) {
	assert.Equal(t, 10.0, Normalize(370))
	assert.Equal(t, 350.0, Normalize(-10))
	assert.Equal(t, 0.0, Normalize(360))
	assert.Equal(t, -170.0, Wrap180(190))
	assert.Equal(t, 20.0, Separation(350, 10))
	assert.Equal(t, 180.0, Separation(90, 270))
}

func TestKeplerSunAtEquinox(t *testing.T) {
	k := NewKepler()
	lon, err := k.Longitude(context.Background(), models.Sun, utc("2024-03-20 03:06"))
	require.NoError(t, err)
	assert.InDelta(t, 0, Wrap180(lon), 0.5)

	v, err := k.Velocity(context.Background(), models.Sun, utc("2024-03-20 03:06"))
	require.NoError(t, err)
	assert.InDelta(t, 0.99, v, 0.05)
}

func TestKeplerNewMoon(t *testing.T) {
	k := NewKepler()
	at := utc("2024-01-11 11:57")
	sun, err := k.Longitude(context.Background(), models.Sun, at)
	require.NoError(t, err)
	moon, err := k.Longitude(context.Background(), models.Moon, at)
	require.NoError(t, err)

	assert.Less(t, Separation(sun, moon), 1.5)

	v, err := k.Velocity(context.Background(), models.Moon, at)
	require.NoError(t, err)
	assert.Greater(t, v, 11.0)
	assert.Less(t, v, 16.0)
}

func TestKeplerMercuryRetrograde(t *testing.T) {
	k := NewKepler()
	ctx := context.Background()

	mid, err := k.Velocity(ctx, models.Mercury, utc("2024-04-12 00:00"))
	require.NoError(t, err)
	assert.Less(t, mid, 0.0)

	after, err := k.Velocity(ctx, models.Mercury, utc("2024-05-15 00:00"))
	require.NoError(t, err)
	assert.Greater(t, after, 0.0)
}

func TestKeplerUnknownBody(t *testing.T) {
	_, err := NewKepler().Longitude(context.Background(), models.Body("vulcan"), utc("2024-01-01 00:00"))
	assert.ErrorIs(t, err, ErrUnknownBody)

	_, err = NewKepler().Longitude(context.Background(), earth, utc("2024-01-01 00:00"))
	assert.ErrorIs(t, err, ErrUnknownBody)
}

func TestKeplerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKepler().Velocity(ctx, models.Mars, utc("2024-01-01 00:00"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemotePosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/position", r.URL.Path)
		assert.Equal(t, "mars", r.URL.Query().Get("body"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("at"))
		_ = json.NewEncoder(w).Encode(Position{Longitude: 365.5, Velocity: -0.25})
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL+"/", RemoteOptions{Timeout: time.Second})
	require.NoError(t, err)

	lon, err := r.Longitude(context.Background(), models.Mars, utc("2024-01-01 00:00"))
	require.NoError(t, err)
	assert.InDelta(t, 5.5, lon, 1e-9)

	v, err := r.Velocity(context.Background(), models.Mars, utc("2024-01-01 00:00"))
	require.NoError(t, err)
	assert.Equal(t, -0.25, v)
}

func TestRemoteSharesOneRequestPerInstant(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(Position{Longitude: 120, Velocity: 0.5})
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL, RemoteOptions{Timeout: time.Second})
	require.NoError(t, err)
	ctx := context.Background()
	at := utc("2024-03-20 03:06")

	_, err = r.Longitude(ctx, models.Jupiter, at)
	require.NoError(t, err)
	v, err := r.Velocity(ctx, models.Jupiter, at)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, int32(1), calls.Load())

	_, err = r.Velocity(ctx, models.Saturn, at)
	require.NoError(t, err)
	_, err = r.Longitude(ctx, models.Jupiter, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Position{Longitude: 12})
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL, RemoteOptions{Timeout: time.Second, MaxRetries: 3, RetryDelayBase: time.Millisecond, HTTP2: true})
	require.NoError(t, err)

	lon, err := r.Longitude(context.Background(), models.Venus, utc("2024-01-01 00:00"))
	require.NoError(t, err)
	assert.Equal(t, 12.0, lon)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL, RemoteOptions{MaxRetries: 2, RetryDelayBase: time.Millisecond})
	require.NoError(t, err)

	_, err = r.Longitude(context.Background(), models.Venus, utc("2024-01-01 00:00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown body", http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := NewRemote(srv.URL, RemoteOptions{MaxRetries: 3, RetryDelayBase: time.Millisecond})
	require.NoError(t, err)

	_, err = r.Velocity(context.Background(), models.Body("vulcan"), utc("2024-01-01 00:00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteRejectsEmptyURL(t *testing.T) {
	_, err := NewRemote("", RemoteOptions{})
	assert.Error(t, err)
}

type countingOracle struct {
	calls atomic.Int32
}

func (c *countingOracle) Longitude(_ context.Context, _ models.Body, t time.Time) (float64, error) {
	c.calls.Add(1)
	return float64(t.Hour()), nil
}

func (c *countingOracle) Velocity(_ context.Context, _ models.Body, _ time.Time) (float64, error) {
	c.calls.Add(1)
	return -1, nil
}

func TestCachedServesRepeatLookups(t *testing.T) {
	store, err := storage.New(0, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	inner := &countingOracle{}
	m := metrics.New()
	c := NewCached(inner, store, m)
	ctx := context.Background()
	at := utc("2024-06-01 07:00")

	for i := 0; i < 3; i++ {
		lon, err := c.Longitude(ctx, models.Saturn, at)
		require.NoError(t, err)
		assert.Equal(t, 7.0, lon)
	}
	v, err := c.Velocity(ctx, models.Saturn, at)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	assert.Equal(t, int32(2), inner.calls.Load())

	expected := `
# HELP skyfeed_sample_cache_hits_total Oracle samples served from the sample cache
# TYPE skyfeed_sample_cache_hits_total counter
skyfeed_sample_cache_hits_total 2
# HELP skyfeed_sample_cache_misses_total Oracle samples not found in the sample cache
# TYPE skyfeed_sample_cache_misses_total counter
skyfeed_sample_cache_misses_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"skyfeed_sample_cache_hits_total", "skyfeed_sample_cache_misses_total"))
}

func TestInstrumentedCountsCalls(t *testing.T) {
	m := metrics.New()
	o := NewInstrumented(NewKepler(), m)
	ctx := context.Background()

	_, _ = o.Longitude(ctx, models.Mars, utc("2024-01-01 00:00"))
	_, _ = o.Longitude(ctx, models.Mars, utc("2024-01-02 00:00"))
	_, err := o.Velocity(ctx, models.Body("vulcan"), utc("2024-01-01 00:00"))
	require.Error(t, err)

	expected := `
# HELP skyfeed_oracle_calls_total Ephemeris oracle lookups by body and quantity
# TYPE skyfeed_oracle_calls_total counter
skyfeed_oracle_calls_total{body="mars",quantity="longitude"} 2
skyfeed_oracle_calls_total{body="vulcan",quantity="velocity"} 1
# HELP skyfeed_oracle_errors_total Ephemeris oracle lookups that failed
# TYPE skyfeed_oracle_errors_total counter
skyfeed_oracle_errors_total{body="vulcan",quantity="velocity"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"skyfeed_oracle_calls_total", "skyfeed_oracle_errors_total"))
}
