// Package ingest feeds readings published by sensors on Kafka or MQTT into
// the temperature service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the part of the temperature service ingest writes to.
type Recorder interface {
	Record(ctx context.Context, in service.RecordInput) (domain.Reading, error)
}

const (
	outcomeRecorded = "recorded"
	outcomeInvalid  = "invalid"
	outcomeFailed   = "failed"
)

var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "thermo_ingest_messages_total",
		Help: "Sensor messages consumed, by source and outcome.",
	},
	[]string{"source", "outcome"},
)

// Payload is the JSON message a sensor publishes. RecordedAt may be an
// RFC 3339 string or epoch milliseconds; both it and Position are optional.
type Payload struct {
	Value      *float64 `json:"value"`
	Position   string   `json:"position,omitempty"`
	RecordedAt any      `json:"recordedAt,omitempty"`
}

// Decode parses a sensor message. Failures wrap service.ErrInvalidReading.
func Decode(data []byte) (service.RecordInput, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return service.RecordInput{}, fmt.Errorf("%w: %v", service.ErrInvalidReading, err)
	}
	if p.Value == nil {
		return service.RecordInput{}, fmt.Errorf("%w: value is required", service.ErrInvalidReading)
	}
	var at string
	switch v := p.RecordedAt.(type) {
	case nil:
	case string:
		at = v
	case float64:
		at = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return service.RecordInput{}, fmt.Errorf("%w: recordedAt must be a string or epoch millis", service.ErrInvalidReading)
	}
	recordedAt, err := service.ParseRecordedAt(at)
	if err != nil {
		return service.RecordInput{}, err
	}
	return service.RecordInput{Value: *p.Value, Position: p.Position, RecordedAt: recordedAt}, nil
}

// handle decodes and records one message and counts the outcome.
func handle(ctx context.Context, rec Recorder, source string, data []byte, log *slog.Logger) error {
	in, err := Decode(data)
	if err == nil {
		var rd domain.Reading
		rd, err = rec.Record(ctx, in)
		if err == nil {
			messagesTotal.WithLabelValues(source, outcomeRecorded).Inc()
			log.Debug("reading_recorded", slog.Int64("id", rd.ID), slog.String("position", rd.Position))
			return nil
		}
	}
	if errors.Is(err, service.ErrInvalidReading) {
		messagesTotal.WithLabelValues(source, outcomeInvalid).Inc()
	} else {
		messagesTotal.WithLabelValues(source, outcomeFailed).Inc()
	}
	return err
}

// retryable reports whether a failed message is worth delivering again.
func retryable(err error) bool {
	return service.KindOf(err) == service.KindStorageUnavailable
}
