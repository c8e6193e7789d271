package memrepo

import (
	"strings"
	"testing"
	"time"

	"github.com/milad/thermo/internal/domain"
)

func TestParseReadingsCSV_OK(t *testing.T) {
	t.Parallel()

	csv := strings.NewReader(strings.TrimSpace(`
time,value,position
2019-01-01 00:15:00,21.5,kitchen
2019-01-01 00:30:00,21.75,
2019-01-01T00:45:00Z,22
`))

	readings, err := ParseReadingsCSV(csv, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := len(readings), 3; got != want {
		t.Fatalf("len(readings)=%d want %d", got, want)
	}
	if readings[0].RecordedAt.Location() != time.UTC {
		t.Fatalf("time location=%v want UTC", readings[0].RecordedAt.Location())
	}
	if got, want := readings[0].Value, 21.5; got != want {
		t.Fatalf("value[0]=%v want %v", got, want)
	}
	if got, want := readings[0].Position, "kitchen"; got != want {
		t.Fatalf("position[0]=%q want %q", got, want)
	}
	if got, want := readings[1].Position, domain.DefaultPosition; got != want {
		t.Fatalf("position[1]=%q want %q", got, want)
	}
	if got, want := readings[2].RecordedAt, time.Date(2019, 1, 1, 0, 45, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("time[2]=%v want %v", got, want)
	}
}

func TestParseReadingsCSV_SkipsInvalidRows(t *testing.T) {
	t.Parallel()

	csv := strings.NewReader(strings.TrimSpace(`
time,value
2019-01-01 00:15:00,21.5
2019-01-01 00:30:00,NaN
not-a-time,12.0
2019-01-01 00:45:00,22.0
`))

	readings, err := ParseReadingsCSV(csv, time.UTC)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if got, want := len(readings), 2; got != want {
		t.Fatalf("len(readings)=%d want %d", got, want)
	}
}

func TestParseReadingsCSV_RejectsUnknownHeader(t *testing.T) {
	t.Parallel()

	_, err := ParseReadingsCSV(strings.NewReader("time,celsius\n"), time.UTC)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}
