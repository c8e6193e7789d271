package domain

import "time"

// DefaultPosition labels readings recorded without an explicit position.
const DefaultPosition = "default"

// Reading represents a single temperature sample at a point in time.
type Reading struct {
	ID         int64
	Value      float64
	Position   string
	RecordedAt time.Time
}
