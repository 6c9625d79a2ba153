package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/models"
)

// Position is the payload of the remote position endpoint.
type Position struct {
	Longitude float64 `json:"longitude"`
	Velocity  float64 `json:"velocity"`
}

// Remote queries an ephemeris service over HTTP:
//
//	GET {base}/v1/position?body=mars&at=2024-01-01T00:00:00Z
//	{"longitude": 271.42, "velocity": 0.71}
type Remote struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration

	mu   sync.Mutex
	last map[models.Body]sample // last position fetched per body
}

type sample struct {
	at  time.Time
	pos Position
}

// RemoteOptions configures NewRemote.
type RemoteOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	// HTTP2 negotiates HTTP/2 on TLS connections.
	HTTP2 bool
}

// NewRemote creates a client for the service at baseURL.
func NewRemote(baseURL string, opts RemoteOptions) (*Remote, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid oracle url %q", baseURL)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryDelayBase <= 0 {
		opts.RetryDelayBase = time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable http2: %w", err)
		}
	}

	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		maxRetries:     opts.MaxRetries,
		retryDelayBase: opts.RetryDelayBase,
		last:           make(map[models.Body]sample),
	}, nil
}

func (r *Remote) Longitude(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	p, err := r.position(ctx, body, t)
	if err != nil {
		return 0, err
	}
	return Normalize(p.Longitude), nil
}

func (r *Remote) Velocity(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	p, err := r.position(ctx, body, t)
	if err != nil {
		return 0, err
	}
	return p.Velocity, nil
}

// position serves a repeat lookup of the last instant fetched for body
// without a request, so a longitude and velocity pair costs one round trip.
func (r *Remote) position(ctx context.Context, body models.Body, t time.Time) (Position, error) {
	r.mu.Lock()
	s, ok := r.last[body]
	r.mu.Unlock()
	if ok && s.at.Equal(t) {
		return s.pos, nil
	}

	p, err := r.Position(ctx, body, t)
	if err != nil {
		return Position{}, err
	}
	r.mu.Lock()
	r.last[body] = sample{at: t, pos: p}
	r.mu.Unlock()
	return p, nil
}

// Position fetches longitude and velocity in one request.
func (r *Remote) Position(ctx context.Context, body models.Body, t time.Time) (Position, error) {
	u, err := url.Parse(r.baseURL + "/v1/position")
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("body", string(body))
	q.Set("at", t.UTC().Format(time.RFC3339Nano))
	u.RawQuery = q.Encode()

	resp, err := r.doRequest(ctx, u.String())
	if err != nil {
		return Position{}, fmt.Errorf("failed to fetch %s position: %w", body, err)
	}
	defer resp.Body.Close()

	var p Position
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Position{}, fmt.Errorf("failed to decode %s position: %w", body, err)
	}
	return p, nil
}

// doRequest retries transport errors and 5xx responses with a linearly
// growing delay. Other non-2xx responses fail immediately.
func (r *Remote) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < r.maxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * r.retryDelayBase
			logger.Debug("Retrying oracle request in %v (attempt %d/%d): %v", delay, i+1, r.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
