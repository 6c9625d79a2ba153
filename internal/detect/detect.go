// Package detect turns oracle samples into events. Each detector scans a
// range with the search engine and emits one event per located crossing.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/skyfeed/internal/ephemeris"
	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Settings holds the scan parameters that are not per body.
type Settings struct {
	AspectStep    time.Duration
	AspectOrb     float64
	MoonAspectOrb float64
	PhaseStep     time.Duration
	LunarDayStep  time.Duration
	// Precision is the bisection stop width for categorical transitions.
	Precision time.Duration
	Aspects   []models.AspectDef
}

func DefaultSettings() Settings {
	return Settings{
		AspectStep:    4 * time.Hour,
		AspectOrb:     5,
		MoonAspectOrb: 2,
		PhaseStep:     3 * time.Hour,
		LunarDayStep:  time.Hour,
		Precision:     time.Minute,
		Aspects:       models.MajorAspects,
	}
}

// Detector runs the event detectors against one oracle.
type Detector struct {
	oracle   ephemeris.Oracle
	profiles models.Profiles
	engine   search.Engine
	settings Settings
	metrics  *metrics.Metrics
}

// New returns a Detector. m may be nil.
func New(o ephemeris.Oracle, profiles models.Profiles, engine search.Engine, s Settings, m *metrics.Metrics) *Detector {
	if profiles == nil {
		profiles = models.DefaultProfiles()
	}
	if len(s.Aspects) == 0 {
		s.Aspects = models.MajorAspects
	}
	return &Detector{oracle: o, profiles: profiles, engine: engine, settings: s, metrics: m}
}

// Settings returns the detector settings.
func (d *Detector) Settings() Settings {
	return d.settings
}

func (d *Detector) longitude(ctx context.Context, body models.Body) search.Func {
	return func(t time.Time) (float64, error) {
		return d.oracle.Longitude(ctx, body, t)
	}
}

func (d *Detector) velocity(ctx context.Context, body models.Body) search.Func {
	return func(t time.Time) (float64, error) {
		return d.oracle.Velocity(ctx, body, t)
	}
}

// elongation is the Moon's longitude minus the Sun's, in [0, 360).
func (d *Detector) elongation(ctx context.Context) search.Func {
	moon, sun := d.longitude(ctx, models.Moon), d.longitude(ctx, models.Sun)
	return func(t time.Time) (float64, error) {
		m, err := moon(t)
		if err != nil {
			return 0, err
		}
		s, err := sun(t)
		if err != nil {
			return 0, err
		}
		return ephemeris.Normalize(m - s), nil
	}
}

// solve runs the engine on one bracket. A rejected candidate yields ok=false
// and no error.
func (d *Detector) solve(kind models.Kind, label string, f search.Func, b search.Bracket, target float64) (at time.Time, ok bool, err error) {
	res, err := d.engine.Solve(f, b, target)
	switch {
	case errors.Is(err, search.ErrLowConfidence):
		logger.Debug("Rejected %s near %s: low confidence", label, b.Ref.Format(time.RFC3339))
		d.metrics.Rejected(string(kind), "low_confidence")
		return time.Time{}, false, nil
	case errors.Is(err, search.ErrEmptyBracket):
		d.metrics.Rejected(string(kind), "empty_bracket")
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("%s: %w", label, err)
	}
	return res.At, true, nil
}

// inRange reports whether t falls in [r.Start, r.End), with the start
// widened to its minute.
func inRange(r search.Range, t time.Time) bool {
	return !t.Before(models.Minute(r.Start)) && t.Before(r.End)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
