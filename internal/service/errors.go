package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/milad/thermo/internal/aggregate"
	"github.com/milad/thermo/internal/repo"
	"github.com/milad/thermo/internal/window"
)

var (
	ErrInvalidReading    = errors.New("invalid reading")
	ErrInvalidPagination = errors.New("invalid pagination")
)

// Kind classifies a failure for callers. Its string form is part of the
// wire contract of both transports.
type Kind string

const (
	KindInvalidWindowKind  Kind = "InvalidWindowKind"
	KindInvalidDateFormat  Kind = "InvalidDateFormat"
	KindInvalidReading     Kind = "InvalidReading"
	KindInvalidPagination  Kind = "InvalidPagination"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindNoReadingsRecorded Kind = "NoReadingsRecorded"
	KindCanceled           Kind = "Canceled"
	KindInternal           Kind = "Internal"
)

var kindErrors = map[Kind]error{
	KindInvalidWindowKind:  window.ErrInvalidWindowKind,
	KindInvalidDateFormat:  window.ErrInvalidDateFormat,
	KindInvalidReading:     ErrInvalidReading,
	KindInvalidPagination:  ErrInvalidPagination,
	KindStorageUnavailable: repo.ErrUnavailable,
	KindNoReadingsRecorded: aggregate.ErrNoReadingsRecorded,
	KindCanceled:           context.Canceled,
}

// Err returns the sentinel error of k, for reconstructing errors received
// over a transport. Unknown kinds map to nil.
func (k Kind) Err() error {
	return kindErrors[k]
}

// Error is returned by every TemperatureService operation that fails.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Nil maps to the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Kind != "" {
		return se.Kind
	}
	switch {
	case errors.Is(err, window.ErrInvalidWindowKind):
		return KindInvalidWindowKind
	case errors.Is(err, window.ErrInvalidDateFormat):
		return KindInvalidDateFormat
	case errors.Is(err, ErrInvalidReading):
		return KindInvalidReading
	case errors.Is(err, ErrInvalidPagination):
		return KindInvalidPagination
	case errors.Is(err, repo.ErrUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, aggregate.ErrNoReadingsRecorded):
		return KindNoReadingsRecorded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}
