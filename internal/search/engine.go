package search

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Engine chains Locator and Refiner for scalar crossings.
type Engine struct {
	Locator Locator
	Refiner Refiner
	// RejectAbove is the error, in the units of f, above which a result
	// from both stages is discarded.
	RejectAbove float64
}

// DefaultEngine uses the default locator and refiner and rejects above 1°.
func DefaultEngine() Engine {
	return Engine{
		Locator:     DefaultLocator(),
		Refiner:     DefaultRefiner(),
		RejectAbove: 1,
	}
}

// Solve locates target inside b and returns a minute-resolution instant.
// The refined answer wins when its true error is smaller than the locator's.
// ErrLowConfidence is returned when both errors exceed RejectAbove. The
// reported Err is always measured at the returned minute.
func (e Engine) Solve(f Func, b Bracket, target float64) (Result, error) {
	loc, err := e.Locator.Locate(f, b, target)
	if err != nil {
		return Result{}, fmt.Errorf("locate: %w", err)
	}
	fallback, err := measure(f, loc.At.UTC().Truncate(time.Minute), target)
	if err != nil {
		return Result{}, fmt.Errorf("locate check: %w", err)
	}

	refined, err := e.Refiner.Refine(f, loc.At, target)
	if errors.Is(err, ErrDegenerateFit) {
		if loc.Err > e.RejectAbove {
			return Result{}, ErrLowConfidence
		}
		return fallback, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("refine: %w", err)
	}

	best, err := measure(f, refined, target)
	if err != nil {
		return Result{}, fmt.Errorf("refine check: %w", err)
	}

	if best.Err > e.RejectAbove && loc.Err > e.RejectAbove {
		return Result{}, ErrLowConfidence
	}
	if best.Err < fallback.Err {
		return best, nil
	}
	return fallback, nil
}

func measure(f Func, at time.Time, target float64) (Result, error) {
	v, err := f(at)
	if err != nil {
		return Result{}, err
	}
	return Result{At: at, Err: math.Abs(v - target)}, nil
}
