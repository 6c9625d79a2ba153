// Package ephemeris supplies geocentric ecliptic longitudes and apparent
// angular velocities of the bodies the detectors track.
package ephemeris

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rewired-gh/skyfeed/internal/models"
)

// ErrUnknownBody is returned for bodies an oracle cannot position.
var ErrUnknownBody = errors.New("unknown body")

// Oracle returns positions for a body at a UTC instant. Results must depend
// only on (body, t) and implementations must be safe for concurrent use.
type Oracle interface {
	// Longitude is the geocentric ecliptic longitude in [0, 360).
	Longitude(ctx context.Context, body models.Body, t time.Time) (float64, error)
	// Velocity is the signed rate of change of longitude in degrees per day;
	// negative means retrograde.
	Velocity(ctx context.Context, body models.Body, t time.Time) (float64, error)
}

// Normalize maps an angle to [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Wrap180 maps an angle to [-180, 180).
func Wrap180(deg float64) float64 {
	return Normalize(deg+180) - 180
}

// Separation is the unsigned angle between two longitudes, in [0, 180].
func Separation(lon1, lon2 float64) float64 {
	return math.Abs(Wrap180(lon1 - lon2))
}
