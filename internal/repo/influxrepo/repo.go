package influxrepo

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/pkg/errors"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
)

var _ repo.ReadingRepository = (*Repo)(nil)

const (
	measurement = "temperature"
	valueField  = "value"
	positionTag = "position"
)

// Config locates the bucket readings are written to.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Repo stores readings as points of the "temperature" measurement. Points are
// keyed by time and position, so a second reading with the same instant and
// position replaces the first. A reading's ID is its Unix nanosecond timestamp.
type Repo struct {
	client influxdb2.Client
	org    string
	bucket string
	loc    *time.Location
}

func New(cfg Config, loc *time.Location) *Repo {
	if loc == nil {
		loc = time.Local
	}
	return &Repo{
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		org:    cfg.Org,
		bucket: cfg.Bucket,
		loc:    loc,
	}
}

// Ping checks that the server is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	ok, err := r.client.Ping(ctx)
	if err != nil {
		return repo.Unavailable(errors.Wrap(err, "ping influxdb"))
	}
	if !ok {
		return repo.Unavailable(errors.New("influxdb is not ready"))
	}
	return nil
}

func (r *Repo) Append(ctx context.Context, rd domain.Reading) (domain.Reading, error) {
	p := influxdb2.NewPoint(
		measurement,
		map[string]string{positionTag: rd.Position},
		map[string]interface{}{valueField: rd.Value},
		rd.RecordedAt,
	)
	if err := r.client.WriteAPIBlocking(r.org, r.bucket).WritePoint(ctx, p); err != nil {
		return domain.Reading{}, repo.Unavailable(errors.Wrap(err, "write point"))
	}
	rd.ID = rd.RecordedAt.UnixNano()
	return rd, nil
}

func (r *Repo) List(ctx context.Context, startInclusive, endExclusive time.Time) ([]domain.Reading, error) {
	if !startInclusive.Before(endExclusive) {
		return []domain.Reading{}, nil
	}
	return r.query(ctx, rangeQuery(r.bucket, startInclusive, endExclusive))
}

func (r *Repo) Latest(ctx context.Context) (domain.Reading, error) {
	out, err := r.query(ctx, latestQuery(r.bucket))
	if err != nil {
		return domain.Reading{}, err
	}
	if len(out) == 0 {
		return domain.Reading{}, repo.ErrNotFound
	}
	return out[0], nil
}

func (r *Repo) Close() {
	r.client.Close()
}

func (r *Repo) query(ctx context.Context, flux string) ([]domain.Reading, error) {
	result, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return nil, repo.Unavailable(errors.Wrap(err, "query influxdb"))
	}
	defer result.Close()

	out := []domain.Reading{}
	for result.Next() {
		rd, err := recordToReading(result.Record(), r.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	if err := result.Err(); err != nil {
		return nil, repo.Unavailable(errors.Wrap(err, "read query result"))
	}
	return out, nil
}

// rangeQuery selects [start, stop) in time order; Flux range stops are exclusive.
func rangeQuery(bucket string, start, stop time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: time(v: %q), stop: time(v: %q))
	|> filter(fn: (r) => r._measurement == %q and r._field == %q)
	|> group()
	|> sort(columns: ["_time"])`,
		bucket, start.UTC().Format(time.RFC3339Nano), stop.UTC().Format(time.RFC3339Nano), measurement, valueField)
}

// Bounds of the InfluxDB timestamp range. Latest scans all of it so that
// readings before 1970 or in the future are not skipped.
var (
	minTime = time.Unix(0, math.MinInt64+2).UTC()
	maxTime = time.Unix(0, math.MaxInt64).UTC()
)

func latestQuery(bucket string) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: time(v: %q), stop: time(v: %q))
	|> filter(fn: (r) => r._measurement == %q and r._field == %q)
	|> group()
	|> sort(columns: ["_time"], desc: true)
	|> limit(n: 1)`,
		bucket, minTime.Format(time.RFC3339Nano), maxTime.Format(time.RFC3339Nano), measurement, valueField)
}

func recordToReading(rec *query.FluxRecord, loc *time.Location) (domain.Reading, error) {
	var value float64
	switch v := rec.Value().(type) {
	case float64:
		value = v
	case int64:
		value = float64(v)
	default:
		return domain.Reading{}, fmt.Errorf("unexpected %s value type %T", valueField, rec.Value())
	}

	position, _ := rec.ValueByKey(positionTag).(string)
	if position == "" {
		position = domain.DefaultPosition
	}
	at := rec.Time()
	return domain.Reading{
		ID:         at.UnixNano(),
		Value:      value,
		Position:   position,
		RecordedAt: at.In(loc),
	}, nil
}
