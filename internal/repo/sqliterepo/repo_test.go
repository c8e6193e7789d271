package sqliterepo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
)

func openTemp(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "readings.db"), time.UTC)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRepo_AppendAssignsIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	first, err := r.Append(ctx, domain.Reading{Value: 20, Position: "hall", RecordedAt: base})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := r.Append(ctx, domain.Reading{Value: 21, Position: "hall", RecordedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("ids=%d,%d want increasing non-zero", first.ID, second.ID)
	}
}

func TestRepo_ListIsHalfOpenAndOrdered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for _, h := range []int{3, 1, 0, 2} {
		if _, err := r.Append(ctx, domain.Reading{Value: float64(h), Position: "default", RecordedAt: base.Add(time.Duration(h) * time.Hour)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	out, err := r.List(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got, want := len(out), 2; got != want {
		t.Fatalf("len(out)=%d want %d", got, want)
	}
	if out[0].Value != 1 || out[1].Value != 2 {
		t.Fatalf("unexpected order: %+v", out)
	}
	if !out[0].RecordedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("recordedAt=%v want %v", out[0].RecordedAt, base.Add(time.Hour))
	}
	if got, want := out[0].Position, "default"; got != want {
		t.Fatalf("position=%q want %q", got, want)
	}
}

func TestRepo_Latest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := openTemp(t)
	if _, err := r.Latest(ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	_, _ = r.Append(ctx, domain.Reading{Value: 25, Position: "default", RecordedAt: base.Add(2 * time.Hour)})
	_, _ = r.Append(ctx, domain.Reading{Value: 18, Position: "default", RecordedAt: base})

	got, err := r.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Value != 25 {
		t.Fatalf("latest=%+v want value 25", got)
	}
}

func TestRepo_ClosedDatabaseIsUnavailable(t *testing.T) {
	t.Parallel()

	r := openTemp(t)
	_ = r.Close()

	_, err := r.List(context.Background(), time.Time{}, time.Now())
	if !errors.Is(err, repo.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestUnixNanos_Clamps(t *testing.T) {
	t.Parallel()

	if got := unixNanos(time.Time{}); got != minNanosTime.UnixNano() {
		t.Fatalf("unixNanos(zero)=%d want %d", got, minNanosTime.UnixNano())
	}
	far := time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := unixNanos(far); got != maxNanosTime.UnixNano() {
		t.Fatalf("unixNanos(3000)=%d want %d", got, maxNanosTime.UnixNano())
	}
}
