package domain

import "time"

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Inverted reports whether Start is after End. Such a window matches nothing.
func (w Window) Inverted() bool {
	return w.Start.After(w.End)
}
