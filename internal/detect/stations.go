package detect

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Stations finds the instants body's apparent velocity changes sign.
// Bodies whose profile says they never retrograde yield nothing.
func (d *Detector) Stations(ctx context.Context, body models.Body, r search.Range) ([]models.Event, error) {
	prof := d.profiles.Lookup(body)
	if !prof.Retrogrades {
		return nil, nil
	}
	vel := d.velocity(ctx, body)

	hits, err := search.Scan(vel, search.SignFlip, r, prof.StationStep)
	if err != nil {
		return nil, fmt.Errorf("scan %s stations: %w", body, err)
	}

	var events []models.Event
	for _, h := range hits {
		at, ok, err := d.solve(models.KindStation, string(body)+" station", vel, h.Bracket, 0)
		if err != nil {
			return nil, err
		}
		if !ok || !inRange(r, at) {
			continue
		}

		before, err := vel(at.Add(-24 * time.Hour))
		if err != nil {
			return nil, err
		}
		after, err := vel(at.Add(24 * time.Hour))
		if err != nil {
			return nil, err
		}
		v, err := vel(at)
		if err != nil {
			return nil, err
		}

		turns := models.TurnsDirect
		if before > after {
			turns = models.TurnsRetrograde
		}
		if math.Abs(v) > prof.Stationary {
			logger.Debug("Weak %s station at %s: |v|=%.4f°/d above %.4f", body, at.Format(time.RFC3339), math.Abs(v), prof.Stationary)
		}

		events = append(events, models.Station{Body: body, At: at, Turns: turns, Velocity: v})
	}
	return events, nil
}
