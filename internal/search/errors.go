package search

import "errors"

var (
	// ErrDegenerateFit is returned by Refiner when the cubic fit or its
	// candidate extraction produces no usable answer.
	ErrDegenerateFit = errors.New("degenerate polynomial fit")

	// ErrLowConfidence is returned by Engine.Solve when neither the locator
	// nor the refiner got within the rejection threshold of the target.
	ErrLowConfidence = errors.New("crossing error above rejection threshold")

	// ErrEmptyBracket is returned for brackets whose end is not after start.
	ErrEmptyBracket = errors.New("empty bracket")
)
