package sqliterepo

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo"
)

var _ repo.ReadingRepository = (*Repo)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value REAL NOT NULL,
		position TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_readings_recorded_at ON readings(recorded_at, id);
`

// Repo stores readings in a SQLite database. recorded_at holds Unix
// nanoseconds so that range predicates compare integers.
type Repo struct {
	db  *sql.DB
	loc *time.Location
}

// Open creates the database file and schema if needed. Returned readings
// carry times in loc.
func Open(ctx context.Context, path string, loc *time.Location) (*Repo, error) {
	if loc == nil {
		loc = time.Local
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set %q", pragma)
		}
	}
	return &Repo{db: db, loc: loc}, nil
}

func (r *Repo) Append(ctx context.Context, rd domain.Reading) (domain.Reading, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO readings (value, position, recorded_at) VALUES (?, ?, ?)`,
		rd.Value, rd.Position, unixNanos(rd.RecordedAt),
	)
	if err != nil {
		return domain.Reading{}, repo.Unavailable(errors.Wrap(err, "insert reading"))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Reading{}, repo.Unavailable(errors.Wrap(err, "read inserted id"))
	}
	rd.ID = id
	return rd, nil
}

func (r *Repo) List(ctx context.Context, startInclusive, endExclusive time.Time) ([]domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, value, position, recorded_at
		FROM readings
		WHERE recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at, id
	`, unixNanos(startInclusive), unixNanos(endExclusive))
	if err != nil {
		return nil, repo.Unavailable(errors.Wrap(err, "query readings"))
	}
	defer rows.Close()

	out := []domain.Reading{}
	for rows.Next() {
		rd, err := r.scan(rows)
		if err != nil {
			return nil, repo.Unavailable(errors.Wrap(err, "scan reading"))
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, repo.Unavailable(errors.Wrap(err, "iterate readings"))
	}
	return out, nil
}

func (r *Repo) Latest(ctx context.Context) (domain.Reading, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, value, position, recorded_at
		FROM readings
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`)
	rd, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reading{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.Reading{}, repo.Unavailable(errors.Wrap(err, "query latest reading"))
	}
	return rd, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

var (
	minNanosTime = time.Unix(0, math.MinInt64)
	maxNanosTime = time.Unix(0, math.MaxInt64)
)

// unixNanos clamps t to the range representable in int64 nanoseconds.
func unixNanos(t time.Time) int64 {
	switch {
	case t.Before(minNanosTime):
		return math.MinInt64
	case t.After(maxNanosTime):
		return math.MaxInt64
	}
	return t.UnixNano()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repo) scan(s scanner) (domain.Reading, error) {
	var (
		rd    domain.Reading
		nanos int64
	)
	if err := s.Scan(&rd.ID, &rd.Value, &rd.Position, &nanos); err != nil {
		return domain.Reading{}, err
	}
	rd.RecordedAt = time.Unix(0, nanos).In(r.loc)
	return rd, nil
}
