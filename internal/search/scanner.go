package search

import (
	"fmt"
	"math"
	"time"
)

// Probe samples a quantity at an instant.
type Probe[V any] func(t time.Time) (V, error)

// Func is a scalar probe, e.g. an angular separation in degrees.
type Func = Probe[float64]

// Sample is one probe result.
type Sample[V any] struct {
	At    time.Time
	Value V
}

// Range is the closed time span a scan covers.
type Range struct {
	Start time.Time
	End   time.Time
}

// Clamp limits t to the range.
func (r Range) Clamp(t time.Time) time.Time {
	if t.Before(r.Start) {
		return r.Start
	}
	if t.After(r.End) {
		return r.End
	}
	return t
}

// Bracket is a span believed to contain one crossing. Ref is the instant the
// locator treats as its best initial guess.
type Bracket struct {
	Lo  time.Time
	Hi  time.Time
	Ref time.Time
}

// Around returns the bracket ref ± halfWidth.
func Around(ref time.Time, halfWidth time.Duration) Bracket {
	return Bracket{Lo: ref.Add(-halfWidth), Hi: ref.Add(halfWidth), Ref: ref}
}

// Width returns Hi - Lo.
func (b Bracket) Width() time.Duration {
	return b.Hi.Sub(b.Lo)
}

// Trip reports whether a crossing happened between two consecutive samples.
type Trip[V any] func(prev, cur V) bool

// StateChanged trips whenever a categorical value changes.
func StateChanged[V comparable]() Trip[V] {
	return func(prev, cur V) bool { return prev != cur }
}

// Crosses trips when a scalar passes through target. A previous value of
// exactly target does not trip, so a crossing sampled dead on is reported
// once rather than twice.
func Crosses(target float64) Trip[float64] {
	return func(prev, cur float64) bool {
		return (prev-target)*(cur-target) <= 0 && prev != target
	}
}

// SignFlip trips when a scalar changes sign, e.g. a velocity passing zero.
var SignFlip = Crosses(0)

// Hit is a tripped step. Before and After are the raw scan samples; Bracket
// is the step padded by a quarter step on each side and clamped to the range.
type Hit[V any] struct {
	Bracket Bracket
	Before  Sample[V]
	After   Sample[V]
}

// Scan walks r in fixed steps and returns a Hit for every step over which
// trip fires. Both range ends are sampled. A step too large for the quantity
// can hide crossings that start and end between two samples.
func Scan[V any](probe Probe[V], trip Trip[V], r Range, step time.Duration) ([]Hit[V], error) {
	if step <= 0 {
		return nil, fmt.Errorf("scan step must be positive, got %v", step)
	}
	if r.End.Before(r.Start) {
		return nil, ErrEmptyBracket
	}

	var hits []Hit[V]
	prev, err := sampleAt(probe, r.Start)
	if err != nil {
		return nil, err
	}
	pad := step / 4

	for prev.At.Before(r.End) {
		next := prev.At.Add(step)
		if next.After(r.End) {
			next = r.End
		}
		cur, err := sampleAt(probe, next)
		if err != nil {
			return nil, err
		}

		if trip(prev.Value, cur.Value) {
			lo := r.Clamp(prev.At.Add(-pad))
			hi := r.Clamp(cur.At.Add(pad))
			hits = append(hits, Hit[V]{
				Bracket: Bracket{Lo: lo, Hi: hi, Ref: lo.Add(hi.Sub(lo) / 2)},
				Before:  prev,
				After:   cur,
			})
		}
		prev = cur
	}

	return hits, nil
}

// Window is a maximal run of scan samples within orb of a target.
type Window struct {
	Start time.Time
	End   time.Time
	// Closest is the run sample with the smallest |value - target|.
	Closest Sample[float64]
}

// Windows walks r in fixed steps and returns each run of samples with
// |f - target| <= orb. A run still open at the end of the range is closed at
// the last sample.
func Windows(f Func, r Range, step time.Duration, target, orb float64) ([]Window, error) {
	if step <= 0 {
		return nil, fmt.Errorf("scan step must be positive, got %v", step)
	}

	var (
		windows []Window
		current *Window
		bestErr float64
		last    time.Time
	)

	for t := r.Start; !t.After(r.End); t = t.Add(step) {
		v, err := f(t)
		if err != nil {
			return nil, err
		}
		diff := math.Abs(v - target)

		switch {
		case diff <= orb && current == nil:
			current = &Window{Start: t, Closest: Sample[float64]{At: t, Value: v}}
			bestErr = diff
		case diff <= orb:
			if diff < bestErr {
				bestErr = diff
				current.Closest = Sample[float64]{At: t, Value: v}
			}
		case current != nil:
			current.End = last
			windows = append(windows, *current)
			current = nil
		}
		last = t
	}

	if current != nil {
		current.End = last
		windows = append(windows, *current)
	}
	return windows, nil
}

func sampleAt[V any](probe Probe[V], t time.Time) (Sample[V], error) {
	v, err := probe(t)
	if err != nil {
		return Sample[V]{}, err
	}
	return Sample[V]{At: t, Value: v}, nil
}
