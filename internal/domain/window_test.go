package domain

import (
	"math"
	"testing"
	"time"
)

func TestWindow_ContainsIsHalfOpen(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: start.Add(time.Hour)}

	if !w.Contains(start) {
		t.Fatalf("expected start to be included")
	}
	if w.Contains(start.Add(time.Hour)) {
		t.Fatalf("expected end to be excluded")
	}
	if w.Contains(start.Add(-time.Nanosecond)) {
		t.Fatalf("expected instant before start to be excluded")
	}
}

func TestWindow_Inverted(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if (Window{Start: start, End: start}).Inverted() {
		t.Fatalf("empty window is not inverted")
	}
	if !(Window{Start: start.Add(time.Second), End: start}).Inverted() {
		t.Fatalf("expected inverted window")
	}
}

func TestScalarResult_NoDataSentinel(t *testing.T) {
	t.Parallel()

	r := ScalarResult{Value: NoData()}
	if r.HasData() {
		t.Fatalf("expected no data")
	}
	if !math.IsNaN(r.Value) {
		t.Fatalf("value=%v want NaN", r.Value)
	}
}
