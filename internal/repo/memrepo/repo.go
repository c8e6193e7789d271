package memrepo

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
)

var _ repo.ReadingRepository = (*Repo)(nil)

// Repo is an in-memory repository, optionally seeded from a CSV file at startup.
type Repo struct {
	mu       sync.RWMutex
	readings []domain.Reading // sorted ascending by RecordedAt, ties in insertion order
	nextID   int64
}

func NewFromFile(path string, loc *time.Location) (*Repo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()

	readings, parseErr := ParseReadingsCSV(f, loc)
	if len(readings) == 0 && parseErr != nil {
		return nil, fmt.Errorf("parse csv %q: %w", path, parseErr)
	}

	// Parsing can be partially successful; surface warnings to the caller.
	if parseErr != nil {
		return New(readings), fmt.Errorf("parse csv %q: %w", path, parseErr)
	}
	return New(readings), nil
}

// New returns a repository holding a copy of readings. IDs are reassigned in
// input order and an empty Position becomes domain.DefaultPosition.
func New(readings []domain.Reading) *Repo {
	cp := append([]domain.Reading(nil), readings...)
	for i := range cp {
		cp[i].ID = int64(i + 1)
		if cp[i].Position == "" {
			cp[i].Position = domain.DefaultPosition
		}
	}
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].RecordedAt.Before(cp[j].RecordedAt) })
	return &Repo{readings: cp, nextID: int64(len(cp))}
}

func (r *Repo) Append(ctx context.Context, rd domain.Reading) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rd.ID = r.nextID

	// Insert after every reading recorded at or before rd.
	i := sort.Search(len(r.readings), func(i int) bool { return r.readings[i].RecordedAt.After(rd.RecordedAt) })
	r.readings = append(r.readings, domain.Reading{})
	copy(r.readings[i+1:], r.readings[i:])
	r.readings[i] = rd
	return rd, nil
}

func (r *Repo) List(ctx context.Context, startInclusive, endExclusive time.Time) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	readings := r.readings
	i := sort.Search(len(readings), func(i int) bool { return !readings[i].RecordedAt.Before(startInclusive) })
	readings = readings[i:]
	j := sort.Search(len(readings), func(i int) bool { return !readings[i].RecordedAt.Before(endExclusive) })
	readings = readings[:j]

	out := append([]domain.Reading(nil), readings...)
	return out, nil
}

func (r *Repo) Latest(ctx context.Context) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.readings) == 0 {
		return domain.Reading{}, repo.ErrNotFound
	}
	return r.readings[len(r.readings)-1], nil
}

// Len returns the number of stored readings.
func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readings)
}
