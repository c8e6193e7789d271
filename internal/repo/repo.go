package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/milad/thermo/internal/domain"
)

var (
	// ErrNotFound is returned by Latest when nothing has been recorded.
	ErrNotFound = errors.New("no readings")
	// ErrUnavailable marks failures of the underlying storage medium.
	ErrUnavailable = errors.New("storage unavailable")
)

// ReadingRepository is an append-only, time-ordered store of readings.
type ReadingRepository interface {
	// Append stores r and returns it with its store-assigned ID.
	Append(ctx context.Context, r domain.Reading) (domain.Reading, error)

	// List returns readings with RecordedAt in [startInclusive, endExclusive),
	// in ascending time order. The returned slice is owned by the caller.
	List(ctx context.Context, startInclusive, endExclusive time.Time) ([]domain.Reading, error)

	// Latest returns the reading with the greatest RecordedAt, or ErrNotFound.
	Latest(ctx context.Context) (domain.Reading, error)
}

// Unavailable marks err as a storage failure so that errors.Is(err, ErrUnavailable) holds.
// Context cancellation is passed through unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
