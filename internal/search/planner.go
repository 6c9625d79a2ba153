package search

import (
	"math"
	"time"
)

// rateStep is one row of the rate → half-width table.
type rateStep struct {
	below     float64 // degrees per hour
	halfWidth time.Duration
}

var rateTable = []rateStep{
	{0.01, 168 * time.Hour},
	{0.05, 120 * time.Hour},
	{0.1, 96 * time.Hour},
	{0.5, 72 * time.Hour},
	{1, 48 * time.Hour},
	{5, 24 * time.Hour},
	{10, 12 * time.Hour},
}

// MinHalfWidth is the floor applied to every planned bracket.
const MinHalfWidth = 6 * time.Hour

// HalfWidth maps a rate of change in degrees per hour to a bracket half-width.
// Slow quantities get wide brackets so the crossing is inside; fast ones get
// narrow brackets so only one crossing is.
func HalfWidth(rate float64) time.Duration {
	rate = math.Abs(rate)
	hw := MinHalfWidth
	for _, row := range rateTable {
		if rate < row.below {
			hw = row.halfWidth
			break
		}
	}
	if hw < MinHalfWidth {
		hw = MinHalfWidth
	}
	return hw
}

// Rate samples f at ref and one hour later and returns the absolute change in
// degrees per hour, folded across the 0/360 seam.
func Rate(f Func, ref time.Time) (float64, error) {
	v0, err := f(ref)
	if err != nil {
		return 0, err
	}
	v1, err := f(ref.Add(time.Hour))
	if err != nil {
		return 0, err
	}
	rate := math.Abs(v1 - v0)
	if rate > 180 {
		rate = 360 - rate
	}
	return rate, nil
}

// PlanHalfWidth measures the local rate of f at ref and sizes a bracket for it.
func PlanHalfWidth(f Func, ref time.Time) (time.Duration, error) {
	rate, err := Rate(f, ref)
	if err != nil {
		return 0, err
	}
	return HalfWidth(rate), nil
}

// Plan returns a bracket centred on ref sized by PlanHalfWidth.
func Plan(f Func, ref time.Time) (Bracket, error) {
	hw, err := PlanHalfWidth(f, ref)
	if err != nil {
		return Bracket{}, err
	}
	return Around(ref, hw), nil
}
