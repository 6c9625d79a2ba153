package search

import (
	"math"
	"time"
)

// Result is a located instant and the |f - target| achieved there.
type Result struct {
	At  time.Time
	Err float64
}

// Locator narrows a bracket by bisection.
type Locator struct {
	// Precision is the bracket width at which bisection stops.
	Precision time.Duration
	// TightThreshold is the reference error under which the bracket is
	// replaced by Ref ± TightRadius before bisecting.
	TightThreshold float64
	TightRadius    time.Duration
	// Observe, when set, is called with the best result after every
	// bisection step.
	Observe func(best Result)
}

// DefaultLocator stops at one minute and re-centres to ±3h below 0.001°.
func DefaultLocator() Locator {
	return Locator{
		Precision:      time.Minute,
		TightThreshold: 0.001,
		TightRadius:    3 * time.Hour,
	}
}

// Locate finds the instant in b where f comes closest to target.
//
// The trend is fixed by comparing f at the bracket ends, and each step keeps
// the half that the trend says still contains the target. The closest sample
// seen is returned rather than the last midpoint, so a non-monotonic f can
// make the bisection wander without losing the best answer.
func (l Locator) Locate(f Func, b Bracket, target float64) (Result, error) {
	if !b.Hi.After(b.Lo) {
		return Result{}, ErrEmptyBracket
	}
	precision := l.Precision
	if precision <= 0 {
		precision = time.Minute
	}

	vRef, err := f(b.Ref)
	if err != nil {
		return Result{}, err
	}
	errRef := math.Abs(vRef - target)

	lo, hi := b.Lo, b.Hi
	vLo, vHi, err := endpoints(f, lo, hi)
	if err != nil {
		return Result{}, err
	}

	// The scan hit was off-centre: widen around the reference.
	if errRef > math.Abs(vLo-target) && errRef > math.Abs(vHi-target) {
		lo = b.Ref.Add(-2 * b.Ref.Sub(b.Lo))
		hi = b.Ref.Add(2 * b.Hi.Sub(b.Ref))
		if vLo, vHi, err = endpoints(f, lo, hi); err != nil {
			return Result{}, err
		}
	}

	if errRef < l.TightThreshold && l.TightRadius > 0 {
		lo = b.Ref.Add(-l.TightRadius)
		hi = b.Ref.Add(l.TightRadius)
		if vLo, vHi, err = endpoints(f, lo, hi); err != nil {
			return Result{}, err
		}
	}

	best := Result{At: b.Ref, Err: errRef}
	increasing := vHi > vLo

	for hi.Sub(lo) > precision {
		mid := lo.Add(hi.Sub(lo) / 2)
		v, err := f(mid)
		if err != nil {
			return Result{}, err
		}

		if e := math.Abs(v - target); e < best.Err {
			best = Result{At: mid, Err: e}
		}

		if (increasing && v < target) || (!increasing && v > target) {
			lo = mid
		} else {
			hi = mid
		}

		if l.Observe != nil {
			l.Observe(best)
		}
	}

	return best, nil
}

// LocateChange bisects between two samples of a categorical probe until they
// are at most precision apart. It returns the first sampled instant that no
// longer holds before.Value, truncated to the minute, and the value there.
func LocateChange[V comparable](probe Probe[V], before, after Sample[V], precision time.Duration) (time.Time, V, error) {
	if precision <= 0 {
		precision = time.Minute
	}
	lo, hi := before.At, after.At
	vHi := after.Value

	for hi.Sub(lo) > precision {
		mid := lo.Add(hi.Sub(lo) / 2)
		v, err := probe(mid)
		if err != nil {
			return time.Time{}, vHi, err
		}
		if v == before.Value {
			lo = mid
		} else {
			hi, vHi = mid, v
		}
	}

	return hi.UTC().Truncate(time.Minute), vHi, nil
}

func endpoints(f Func, lo, hi time.Time) (float64, float64, error) {
	vLo, err := f(lo)
	if err != nil {
		return 0, 0, err
	}
	vHi, err := f(hi)
	if err != nil {
		return 0, 0, err
	}
	return vLo, vHi, nil
}
