package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/skyfeed/internal/ephemeris"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Signs finds every ingress of body into a new zodiac sign within r.
func (d *Detector) Signs(ctx context.Context, body models.Body, r search.Range) ([]models.Event, error) {
	prof := d.profiles.Lookup(body)
	lon := d.longitude(ctx, body)
	sign := func(t time.Time) (int, error) {
		v, err := lon(t)
		if err != nil {
			return 0, err
		}
		return models.SignIndex(v), nil
	}

	hits, err := search.Scan(sign, search.StateChanged[int](), r, prof.SignStep)
	if err != nil {
		return nil, fmt.Errorf("scan %s signs: %w", body, err)
	}

	var events []models.Event
	for _, h := range hits {
		from, to := h.Before.Value, h.After.Value

		// Moving forward the body crosses the start of the new sign,
		// moving back it crosses the start of the old one.
		boundary := float64(to) * 30
		if (to-from+12)%12 > 6 {
			boundary = float64(from) * 30
		}
		f := func(t time.Time) (float64, error) {
			v, err := lon(t)
			if err != nil {
				return 0, err
			}
			return ephemeris.Wrap180(v - boundary), nil
		}

		label := fmt.Sprintf("%s ingress %s→%s", body, models.Signs[from], models.Signs[to])
		at, ok, err := d.solve(models.KindSignChange, label, f, h.Bracket, 0)
		if err != nil {
			return nil, err
		}
		if !ok || !inRange(r, at) {
			continue
		}
		events = append(events, models.SignChange{
			Body:    body,
			At:      at,
			OldSign: models.Signs[from],
			NewSign: models.Signs[to],
		})
	}
	return events, nil
}
