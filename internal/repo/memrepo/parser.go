package memrepo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/milad/thermo/internal/domain"
)

const (
	timeLayout = "2006-01-02 15:04:05"
)

// ParseReadingsCSV parses seed readings from the provided CSV reader.
//
// Expected header: time,value[,position]
//
// Times are parsed using layout "2006-01-02 15:04:05" in loc, or as RFC 3339.
// A missing or empty position becomes domain.DefaultPosition.
// Invalid rows are skipped and returned as a joined error (errors.Join).
func ParseReadingsCSV(r io.Reader, loc *time.Location) ([]domain.Reading, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // be permissive; validate ourselves
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "time") || !strings.EqualFold(strings.TrimSpace(header[1]), "value") {
		return nil, fmt.Errorf("unexpected header %q (want %q)", strings.Join(header, ","), "time,value[,position]")
	}

	var (
		readings []domain.Reading
		rowErrs  []error
		rowNum   = 1 // header
	)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: read: %w", rowNum, err))
			continue
		}
		if len(row) < 2 {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: expected at least 2 columns, got %d", rowNum, len(row)))
			continue
		}

		t, err := parseTime(strings.TrimSpace(row[0]), loc)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: parse time %q: %w", rowNum, row[0], err))
			continue
		}

		f, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: parse value %q: %w", rowNum, row[1], err))
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: invalid value %v", rowNum, f))
			continue
		}

		position := domain.DefaultPosition
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			position = strings.TrimSpace(row[2])
		}

		readings = append(readings, domain.Reading{
			Value:      f,
			Position:   position,
			RecordedAt: t,
		})
	}

	// Ensure we return stable, non-nil slice.
	if readings == nil {
		readings = []domain.Reading{}
	}
	return readings, errors.Join(rowErrs...)
}

func parseTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(timeLayout, v, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
