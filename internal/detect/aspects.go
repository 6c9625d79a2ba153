package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/skyfeed/internal/ephemeris"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Aspects finds the exact times body1 and body2 form each configured aspect
// within r. An aspect is considered only while the separation stays within
// orb of its angle.
func (d *Detector) Aspects(ctx context.Context, body1, body2 models.Body, r search.Range, orb float64) ([]models.Event, error) {
	lon1, lon2 := d.longitude(ctx, body1), d.longitude(ctx, body2)
	pair := func(t time.Time) (float64, float64, error) {
		a, err := lon1(t)
		if err != nil {
			return 0, 0, err
		}
		b, err := lon2(t)
		return a, b, err
	}
	diff := func(t time.Time) (float64, error) {
		a, b, err := pair(t)
		if err != nil {
			return 0, err
		}
		return ephemeris.Wrap180(a - b), nil
	}
	separation := func(t time.Time) (float64, error) {
		a, b, err := pair(t)
		if err != nil {
			return 0, err
		}
		return ephemeris.Separation(a, b), nil
	}

	var events []models.Event
	for _, aspect := range d.settings.Aspects {
		if aspect.Name == "" {
			aspect.Name = models.AspectName(aspect.Angle)
		}
		windows, err := search.Windows(separation, r, d.settings.AspectStep, aspect.Angle, orb)
		if err != nil {
			return nil, fmt.Errorf("scan %s-%s %s: %w", body1, body2, aspect.Name, err)
		}

		f := residual(aspect.Angle, diff, separation)
		for _, w := range windows {
			b, err := search.Plan(f, w.Closest.At)
			if err != nil {
				return nil, fmt.Errorf("plan %s-%s %s: %w", body1, body2, aspect.Name, err)
			}

			label := fmt.Sprintf("%s %s %s", body1, aspect.Name, body2)
			at, ok, err := d.solve(models.KindAspect, label, f, b, 0)
			if err != nil {
				return nil, err
			}
			if !ok || !inRange(r, at) {
				continue
			}
			events = append(events, models.Aspect{
				Body1:  body1,
				Body2:  body2,
				Name:   aspect.Name,
				Angle:  aspect.Angle,
				Exact:  at,
				Window: models.Interval{Start: w.Start, End: w.End},
			})
		}
	}
	return events, nil
}

// residual returns a function that passes through zero when the separation
// equals angle. The folded separation only touches 0° and 180°, so those two
// use the signed difference instead.
func residual(angle float64, diff, separation search.Func) search.Func {
	switch angle {
	case 0:
		return diff
	case 180:
		return func(t time.Time) (float64, error) {
			v, err := diff(t)
			if err != nil {
				return 0, err
			}
			return ephemeris.Wrap180(v - 180), nil
		}
	default:
		return func(t time.Time) (float64, error) {
			v, err := separation(t)
			if err != nil {
				return 0, err
			}
			return v - angle, nil
		}
	}
}
