package search

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sampleFractions are the refiner sample offsets as fractions of the radius.
var sampleFractions = []float64{-1, -0.5, -0.25, 0, 0.25, 0.5, 1}

// Refiner improves a located instant below one-minute resolution with a
// least-squares cubic through samples around it.
type Refiner struct {
	Radius     time.Duration
	GridPoints int
}

// DefaultRefiner samples ±3h and searches a 1000-point grid.
func DefaultRefiner() Refiner {
	return Refiner{Radius: 3 * time.Hour, GridPoints: 1000}
}

// Cubic holds polynomial coefficients, lowest degree first.
type Cubic [4]float64

// At evaluates the polynomial.
func (c Cubic) At(x float64) float64 {
	return ((c[3]*x+c[2])*x+c[1])*x + c[0]
}

// CriticalPoints returns the real roots of the derivative.
func (c Cubic) CriticalPoints() []float64 {
	a, b, k := 3*c[3], 2*c[2], c[1]
	if math.Abs(a) < 1e-12 {
		if math.Abs(b) < 1e-12 {
			return nil
		}
		return []float64{-k / b}
	}
	disc := b*b - 4*a*k
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	return []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)}
}

// FitCubic returns the least-squares cubic through (xs, ys).
func FitCubic(xs, ys []float64) (Cubic, error) {
	if len(xs) != len(ys) || len(xs) < 4 {
		return Cubic{}, fmt.Errorf("%w: need at least 4 samples, got %d", ErrDegenerateFit, len(xs))
	}

	a := mat.NewDense(len(xs), 4, nil)
	for i, x := range xs {
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, x*x)
		a.Set(i, 3, x*x*x)
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, mat.NewVecDense(len(ys), append([]float64(nil), ys...))); err != nil {
		return Cubic{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}

	var c Cubic
	for i := range c {
		c[i] = coef.AtVec(i)
		if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
			return Cubic{}, ErrDegenerateFit
		}
	}
	return c, nil
}

// Refine samples f around center, fits a cubic and returns the instant,
// truncated to the minute, where the cubic comes closest to target. Probe
// errors are returned as is; a failed fit yields ErrDegenerateFit.
func (r Refiner) Refine(f Func, center time.Time, target float64) (time.Time, error) {
	radius := r.Radius
	if radius <= 0 {
		radius = 3 * time.Hour
	}
	points := r.GridPoints
	if points < 2 {
		points = 1000
	}

	origin := center.Add(-radius)
	span := (2 * radius).Hours()

	xs := make([]float64, len(sampleFractions))
	ys := make([]float64, len(sampleFractions))
	for i, frac := range sampleFractions {
		at := center.Add(time.Duration(frac * float64(radius)))
		v, err := f(at)
		if err != nil {
			return time.Time{}, err
		}
		xs[i] = at.Sub(origin).Hours()
		ys[i] = v
	}

	poly, err := FitCubic(xs, ys)
	if err != nil {
		return time.Time{}, err
	}

	candidates := floats.Span(make([]float64, points), 0, span)
	candidates = append(candidates, 0, span)
	for _, x := range poly.CriticalPoints() {
		if x >= 0 && x <= span {
			candidates = append(candidates, x)
		}
	}

	bestX, bestDiff := math.NaN(), math.Inf(1)
	for _, x := range candidates {
		if d := math.Abs(poly.At(x) - target); d < bestDiff {
			bestX, bestDiff = x, d
		}
	}
	if math.IsNaN(bestX) {
		return time.Time{}, ErrDegenerateFit
	}

	at := origin.Add(time.Duration(bestX * float64(time.Hour)))
	return at.UTC().Truncate(time.Minute), nil
}
