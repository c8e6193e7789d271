package domain

import "math"

// NoData is the value carried by aggregate results computed over zero readings.
// It is NaN so that it can never be mistaken for a real average of 0.
func NoData() float64 { return math.NaN() }

// ListResult holds the readings of a window in chronological order.
type ListResult struct {
	Count    int
	Readings []Reading
}

// ScalarResult is an aggregate value over Count readings.
type ScalarResult struct {
	Value float64
	Count int
}

// HasData reports whether the result was computed over at least one reading.
func (r ScalarResult) HasData() bool { return r.Count > 0 }

// ExtremumResult is the max or min of a window. Matches holds every reading
// whose value equals Value, in chronological order.
type ExtremumResult struct {
	Value   float64
	Count   int
	Matches []Reading
}

func (r ExtremumResult) HasData() bool { return r.Count > 0 }
