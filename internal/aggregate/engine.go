package aggregate

import (
	"context"
	"errors"
	"math"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
	"github.com/milad/thermo/internal/window"
)

var ErrNoReadingsRecorded = errors.New("no readings recorded")

// Engine computes list, latest and statistics over a ReadingRepository.
// It keeps no state between calls; every call re-reads its window.
type Engine struct {
	repo     repo.ReadingRepository
	resolver *window.Resolver
}

func NewEngine(r repo.ReadingRepository, resolver *window.Resolver) *Engine {
	return &Engine{repo: r, resolver: resolver}
}

func (e *Engine) List(ctx context.Context, w domain.Window) (domain.ListResult, error) {
	readings, err := e.readings(ctx, w)
	if err != nil {
		return domain.ListResult{}, err
	}
	return domain.ListResult{Count: len(readings), Readings: readings}, nil
}

func (e *Engine) Latest(ctx context.Context) (domain.Reading, error) {
	r, err := e.repo.Latest(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Reading{}, ErrNoReadingsRecorded
	}
	return r, err
}

func (e *Engine) Average(ctx context.Context, w domain.Window) (domain.ScalarResult, error) {
	readings, err := e.readings(ctx, w)
	if err != nil {
		return domain.ScalarResult{}, err
	}
	return Mean(readings), nil
}

func (e *Engine) Max(ctx context.Context, w domain.Window) (domain.ExtremumResult, error) {
	readings, err := e.readings(ctx, w)
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	return Extremum(readings, func(a, b float64) bool { return a > b }), nil
}

func (e *Engine) Min(ctx context.Context, w domain.Window) (domain.ExtremumResult, error) {
	readings, err := e.readings(ctx, w)
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	return Extremum(readings, func(a, b float64) bool { return a < b }), nil
}

// AverageOfWeek averages from Monday 00:00 of the current ISO week until now.
func (e *Engine) AverageOfWeek(ctx context.Context) (domain.ScalarResult, error) {
	return e.Average(ctx, e.resolver.ThisWeek())
}

// readings fetches the window and refuses to hand back anything once ctx is
// done, so callers never aggregate a read that raced a cancellation.
func (e *Engine) readings(ctx context.Context, w domain.Window) ([]domain.Reading, error) {
	if w.Inverted() {
		return []domain.Reading{}, nil
	}
	readings, err := e.repo.List(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if readings == nil {
		readings = []domain.Reading{}
	}
	return readings, nil
}

// Mean returns the arithmetic mean of the readings' values, or the NoData
// sentinel with Count 0 when there are none.
func Mean(readings []domain.Reading) domain.ScalarResult {
	if len(readings) == 0 {
		return domain.ScalarResult{Value: domain.NoData(), Count: 0}
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return domain.ScalarResult{Value: sum / float64(len(readings)), Count: len(readings)}
}

// Extremum returns every reading whose value is extremal under better, in
// input order. NaN values never match.
func Extremum(readings []domain.Reading, better func(a, b float64) bool) domain.ExtremumResult {
	res := domain.ExtremumResult{Value: domain.NoData(), Matches: []domain.Reading{}}
	for _, r := range readings {
		if math.IsNaN(r.Value) {
			continue
		}
		switch {
		case len(res.Matches) == 0 || better(r.Value, res.Value):
			res.Value = r.Value
			res.Matches = append(res.Matches[:0], r)
		case r.Value == res.Value:
			res.Matches = append(res.Matches, r)
		}
	}
	res.Count = len(res.Matches)
	return res
}
