package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
	"github.com/milad/thermo/internal/repo/memrepo"
	"github.com/milad/thermo/internal/window"
)

var day = time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC) // a Thursday

func at(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

func fullDay() domain.Window { return domain.Window{Start: day, End: day.Add(24 * time.Hour)} }

func newEngine(t *testing.T, readings ...domain.Reading) *Engine {
	t.Helper()
	now := at(18)
	return NewEngine(memrepo.New(readings), window.NewResolver(func() time.Time { return now }, time.UTC))
}

func exampleReadings() []domain.Reading {
	return []domain.Reading{
		{Value: 20.0, Position: "default", RecordedAt: at(9)},
		{Value: 25.0, Position: "default", RecordedAt: at(10)},
		{Value: 25.0, Position: "default", RecordedAt: at(11)},
		{Value: 18.0, Position: "default", RecordedAt: at(12)},
	}
}

func TestEngine_ExampleDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, exampleReadings()...)

	avg, err := e.Average(ctx, fullDay())
	if err != nil {
		t.Fatalf("Average: %v", err)
	}
	if math.Abs(avg.Value-22.0) > 1e-9 || avg.Count != 4 {
		t.Fatalf("average=%+v want {22 4}", avg)
	}

	max, err := e.Max(ctx, fullDay())
	if err != nil {
		t.Fatalf("Max: %v", err)
	}
	if max.Value != 25 || max.Count != 2 || len(max.Matches) != 2 {
		t.Fatalf("max=%+v want value 25 count 2", max)
	}
	if !max.Matches[0].RecordedAt.Equal(at(10)) || !max.Matches[1].RecordedAt.Equal(at(11)) {
		t.Fatalf("max matches out of order: %+v", max.Matches)
	}

	min, err := e.Min(ctx, fullDay())
	if err != nil {
		t.Fatalf("Min: %v", err)
	}
	if min.Value != 18 || min.Count != 1 || !min.Matches[0].RecordedAt.Equal(at(12)) {
		t.Fatalf("min=%+v want value 18 at 12:00", min)
	}
}

func TestEngine_ListMatchesWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, exampleReadings()...)
	w := domain.Window{Start: at(10), End: at(12)}

	res, err := e.List(ctx, w)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got, want := res.Count, 2; got != want {
		t.Fatalf("count=%d want %d", got, want)
	}
	if res.Count != len(res.Readings) {
		t.Fatalf("count=%d but %d readings", res.Count, len(res.Readings))
	}
	for _, r := range res.Readings {
		if !w.Contains(r.RecordedAt) {
			t.Fatalf("reading %v outside [%v, %v)", r.RecordedAt, w.Start, w.End)
		}
	}

	again, err := e.List(ctx, w)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := range res.Readings {
		if res.Readings[i] != again.Readings[i] {
			t.Fatalf("list not idempotent at %d: %+v vs %+v", i, res.Readings[i], again.Readings[i])
		}
	}
}

func TestEngine_AverageMatchesList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, exampleReadings()...)
	w := domain.Window{Start: at(9), End: at(11)}

	list, _ := e.List(ctx, w)
	avg, err := e.Average(ctx, w)
	if err != nil {
		t.Fatalf("Average: %v", err)
	}

	var sum float64
	for _, r := range list.Readings {
		sum += r.Value
	}
	if want := sum / float64(list.Count); avg.Value != want || avg.Count != list.Count {
		t.Fatalf("average=%+v want {%v %d}", avg, want, list.Count)
	}
}

func TestEngine_EmptyWindowUsesNoDataSentinel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, exampleReadings()...)
	w := domain.Window{Start: at(13), End: at(14)}

	avg, err := e.Average(ctx, w)
	if err != nil {
		t.Fatalf("Average: %v", err)
	}
	if avg.HasData() || avg.Count != 0 || !math.IsNaN(avg.Value) {
		t.Fatalf("average=%+v want no-data sentinel", avg)
	}

	max, err := e.Max(ctx, w)
	if err != nil {
		t.Fatalf("Max: %v", err)
	}
	if max.HasData() || max.Matches == nil || len(max.Matches) != 0 || !math.IsNaN(max.Value) {
		t.Fatalf("max=%+v want no-data sentinel with empty matches", max)
	}
}

func TestEngine_InvertedWindowMatchesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, exampleReadings()...)
	w := domain.Window{Start: at(23), End: at(0)}

	list, err := e.List(ctx, w)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Count != 0 || list.Readings == nil {
		t.Fatalf("list=%+v want empty non-nil", list)
	}
	min, err := e.Min(ctx, w)
	if err != nil {
		t.Fatalf("Min: %v", err)
	}
	if min.HasData() {
		t.Fatalf("min=%+v want no data", min)
	}
}

func TestEngine_Latest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := newEngine(t).Latest(ctx); !errors.Is(err, ErrNoReadingsRecorded) {
		t.Fatalf("err=%v want ErrNoReadingsRecorded", err)
	}

	got, err := newEngine(t, exampleReadings()...).Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !got.RecordedAt.Equal(at(12)) {
		t.Fatalf("latest=%+v want reading at 12:00", got)
	}
}

func TestEngine_AverageOfWeek(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	monday := day.AddDate(0, 0, -3)
	e := newEngine(t,
		domain.Reading{Value: 100, RecordedAt: monday.Add(-time.Minute)}, // previous Sunday
		domain.Reading{Value: 10, RecordedAt: monday},
		domain.Reading{Value: 20, RecordedAt: at(9)},
		domain.Reading{Value: 1000, RecordedAt: at(19)}, // after now
	)

	avg, err := e.AverageOfWeek(ctx)
	if err != nil {
		t.Fatalf("AverageOfWeek: %v", err)
	}
	if avg.Value != 15 || avg.Count != 2 {
		t.Fatalf("average=%+v want {15 2}", avg)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) Append(context.Context, domain.Reading) (domain.Reading, error) {
	return domain.Reading{}, f.err
}
func (f failingRepo) List(context.Context, time.Time, time.Time) ([]domain.Reading, error) {
	return nil, f.err
}
func (f failingRepo) Latest(context.Context) (domain.Reading, error) { return domain.Reading{}, f.err }

func TestEngine_PropagatesStorageErrors(t *testing.T) {
	t.Parallel()

	e := NewEngine(failingRepo{err: repo.ErrUnavailable}, window.NewResolver(nil, time.UTC))
	if _, err := e.Average(context.Background(), fullDay()); !errors.Is(err, repo.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
	if _, err := e.Latest(context.Background()); !errors.Is(err, repo.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

// cancelAfterList returns data but cancels the caller's context first.
type cancelAfterList struct {
	repo.ReadingRepository
	cancel context.CancelFunc
}

func (c cancelAfterList) List(ctx context.Context, start, end time.Time) ([]domain.Reading, error) {
	c.cancel()
	return []domain.Reading{{Value: 1, RecordedAt: start}}, nil
}

func TestEngine_CancelledReadYieldsNoAggregate(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(cancelAfterList{cancel: cancel}, window.NewResolver(nil, time.UTC))

	avg, err := e.Average(ctx, fullDay())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if avg.Count != 0 {
		t.Fatalf("average=%+v want zero value", avg)
	}
}

func TestExtremum_SkipsNaNAndKeepsAllTies(t *testing.T) {
	t.Parallel()

	readings := []domain.Reading{
		{ID: 1, Value: math.NaN()},
		{ID: 2, Value: 3},
		{ID: 3, Value: 5},
		{ID: 4, Value: math.NaN()},
		{ID: 5, Value: 5},
		{ID: 6, Value: 1},
	}

	max := Extremum(readings, func(a, b float64) bool { return a > b })
	if max.Value != 5 || max.Count != 2 || max.Matches[0].ID != 3 || max.Matches[1].ID != 5 {
		t.Fatalf("max=%+v", max)
	}

	min := Extremum(readings, func(a, b float64) bool { return a < b })
	if min.Value != 1 || min.Count != 1 || min.Matches[0].ID != 6 {
		t.Fatalf("min=%+v", min)
	}

	onlyNaN := Extremum(readings[:1], func(a, b float64) bool { return a > b })
	if onlyNaN.HasData() {
		t.Fatalf("expected no data, got %+v", onlyNaN)
	}
}
