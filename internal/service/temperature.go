package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/milad/thermo/internal/aggregate"
	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
	"github.com/milad/thermo/internal/window"
)

const MaxPageSize = 5_000

// RecordInput describes a reading to append. A zero RecordedAt means "now"
// and an empty Position means domain.DefaultPosition.
type RecordInput struct {
	Value      float64
	Position   string
	RecordedAt time.Time
}

type ListPageResult struct {
	domain.ListResult
	NextPageToken string
}

// TemperatureService binds window resolution to the aggregation engine and
// classifies every failure with a Kind.
type TemperatureService struct {
	repo     repo.ReadingRepository
	resolver *window.Resolver
	engine   *aggregate.Engine
}

func NewTemperatureService(r repo.ReadingRepository, resolver *window.Resolver) *TemperatureService {
	if resolver == nil {
		resolver = window.NewResolver(nil, nil)
	}
	return &TemperatureService{
		repo:     r,
		resolver: resolver,
		engine:   aggregate.NewEngine(r, resolver),
	}
}

func (s *TemperatureService) Record(ctx context.Context, in RecordInput) (domain.Reading, error) {
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
		return domain.Reading{}, wrap("record", fmt.Errorf("%w: value %v", ErrInvalidReading, in.Value))
	}
	rd := domain.Reading{
		Value:      in.Value,
		Position:   strings.TrimSpace(in.Position),
		RecordedAt: in.RecordedAt,
	}
	if rd.Position == "" {
		rd.Position = domain.DefaultPosition
	}
	if rd.RecordedAt.IsZero() {
		rd.RecordedAt = s.resolver.Now()
	}
	out, err := s.repo.Append(ctx, rd)
	return out, wrap("record", err)
}

func (s *TemperatureService) List(ctx context.Context, in window.Input) (domain.ListResult, error) {
	w, err := s.resolver.Resolve(in)
	if err != nil {
		return domain.ListResult{}, wrap("list", err)
	}
	res, err := s.engine.List(ctx, w)
	return res, wrap("list", err)
}

// ListPage is List with offset pagination. A pageSize of 0 returns the whole
// window; otherwise pageToken is the offset returned by the previous page.
func (s *TemperatureService) ListPage(ctx context.Context, in window.Input, pageSize int, pageToken string) (ListPageResult, error) {
	offset, err := parseOffsetToken(pageSize, pageToken)
	if err != nil {
		return ListPageResult{}, wrap("list", err)
	}
	if pageSize < 0 {
		return ListPageResult{}, wrap("list", fmt.Errorf("%w: page_size must be >= 0", ErrInvalidPagination))
	}
	if pageSize > MaxPageSize {
		return ListPageResult{}, wrap("list", fmt.Errorf("%w: page_size too large (max %d)", ErrInvalidPagination, MaxPageSize))
	}

	res, err := s.List(ctx, in)
	if err != nil {
		return ListPageResult{}, err
	}
	readings := res.Readings
	if offset > len(readings) {
		return ListPageResult{}, wrap("list", fmt.Errorf("%w: page_token out of range", ErrInvalidPagination))
	}

	// Unpaged behavior: return everything.
	if pageSize == 0 {
		return ListPageResult{ListResult: res}, nil
	}

	end := offset + pageSize
	if end > len(readings) {
		end = len(readings)
	}
	next := ""
	if end < len(readings) {
		next = strconv.Itoa(end)
	}
	page := readings[offset:end]
	return ListPageResult{
		ListResult:    domain.ListResult{Count: len(page), Readings: page},
		NextPageToken: next,
	}, nil
}

func (s *TemperatureService) Latest(ctx context.Context) (domain.Reading, error) {
	r, err := s.engine.Latest(ctx)
	return r, wrap("latest", err)
}

func (s *TemperatureService) Average(ctx context.Context, in window.Input) (domain.ScalarResult, error) {
	w, err := s.resolver.Resolve(in)
	if err != nil {
		return domain.ScalarResult{}, wrap("average", err)
	}
	res, err := s.engine.Average(ctx, w)
	return res, wrap("average", err)
}

func (s *TemperatureService) Max(ctx context.Context, in window.Input) (domain.ExtremumResult, error) {
	w, err := s.resolver.Resolve(in)
	if err != nil {
		return domain.ExtremumResult{}, wrap("max", err)
	}
	res, err := s.engine.Max(ctx, w)
	return res, wrap("max", err)
}

func (s *TemperatureService) Min(ctx context.Context, in window.Input) (domain.ExtremumResult, error) {
	w, err := s.resolver.Resolve(in)
	if err != nil {
		return domain.ExtremumResult{}, wrap("min", err)
	}
	res, err := s.engine.Min(ctx, w)
	return res, wrap("min", err)
}

func (s *TemperatureService) AverageOfWeek(ctx context.Context) (domain.ScalarResult, error) {
	res, err := s.engine.AverageOfWeek(ctx)
	return res, wrap("averageOfWeek", err)
}

func parseOffsetToken(pageSize int, pageToken string) (int, error) {
	if pageToken == "" {
		return 0, nil
	}
	if pageSize <= 0 {
		return 0, fmt.Errorf("%w: page_token requires page_size", ErrInvalidPagination)
	}
	n, err := strconv.Atoi(pageToken)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid page_token", ErrInvalidPagination)
	}
	return n, nil
}

// ParseRecordedAt accepts epoch milliseconds or an RFC 3339 time. The empty
// string yields the zero time, which Record replaces with now.
func ParseRecordedAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: recordedAt %q is neither epoch millis nor RFC 3339", ErrInvalidReading, v)
	}
	return t, nil
}
