package window

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/milad/thermo/internal/domain"
)

var (
	ErrInvalidWindowKind = errors.New("invalid window kind")
	ErrInvalidDateFormat = errors.New("invalid date format")
)

// Kind selects how the raw boundaries of an Input are interpreted.
type Kind string

const (
	// Timestamp boundaries are epoch milliseconds.
	Timestamp Kind = "TIMESTAMP"
	// Formatted boundaries are strings parsed with Input.Format.
	Formatted Kind = "FORMATTED"
)

// Input is a loosely specified date range as received from a caller.
// Empty fields are treated as absent.
type Input struct {
	StartTime string
	EndTime   string
	Type      string
	Format    string
}

// Resolver turns an Input into a canonical Window. The clock and location
// are injected so that "today" and "this week" are deterministic in tests.
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

func NewResolver(now func() time.Time, loc *time.Location) *Resolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{now: now, loc: loc}
}

// Now returns the resolver's current instant in its location.
func (r *Resolver) Now() time.Time {
	return r.now().In(r.loc)
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve validates the kind, applies the "start of today" and "now" defaults
// for absent boundaries, and parses the remaining ones.
//
// A start after the end is returned as given.
func (r *Resolver) Resolve(in Input) (domain.Window, error) {
	kind, err := parseKind(in.Type)
	if err != nil {
		return domain.Window{}, err
	}

	now := r.Now()
	w := domain.Window{Start: StartOfDay(now), End: now}

	var parse func(string) (time.Time, error)
	switch kind {
	case Timestamp:
		parse = parseEpochMillis
	case Formatted:
		layouts, err := layoutsFor(in.Format)
		if err != nil {
			return domain.Window{}, err
		}
		parse = func(v string) (time.Time, error) { return parseWithLayouts(layouts, v, r.loc) }
	}

	if v := strings.TrimSpace(in.StartTime); v != "" {
		if w.Start, err = parse(v); err != nil {
			return domain.Window{}, fmt.Errorf("startTime: %w", err)
		}
	}
	if v := strings.TrimSpace(in.EndTime); v != "" {
		if w.End, err = parse(v); err != nil {
			return domain.Window{}, fmt.Errorf("endTime: %w", err)
		}
	}
	return w, nil
}

// Today returns [local midnight, now).
func (r *Resolver) Today() domain.Window {
	now := r.Now()
	return domain.Window{Start: StartOfDay(now), End: now}
}

// ThisWeek returns [Monday 00:00 of the current ISO week, now).
func (r *Resolver) ThisWeek() domain.Window {
	now := r.Now()
	return domain.Window{Start: StartOfISOWeek(now), End: now}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfISOWeek returns midnight of the Monday starting t's ISO week.
func StartOfISOWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func parseKind(v string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(v))); k {
	case "":
		return Timestamp, nil
	case Timestamp, Formatted:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWindowKind, v)
	}
}

func parseEpochMillis(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("%w: %q is not epoch milliseconds", ErrInvalidDateFormat, v)
	}
	// float64(math.MaxInt64) rounds up to 2^63, hence >=.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: %q is out of range", ErrInvalidDateFormat, v)
	}
	return time.UnixMilli(int64(f)), nil
}

func parseWithLayouts(layouts []string, v string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q does not match %q", ErrInvalidDateFormat, v, strings.Join(layouts, " | "))
}
