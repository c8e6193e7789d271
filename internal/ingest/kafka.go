package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const sourceKafka = "kafka"

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// fetcher is the subset of *kafka.Reader the consumer uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer records every message of a topic through a consumer group.
// Offsets are committed once a message is recorded or rejected as invalid;
// storage outages are retried with backoff before moving on.
type KafkaConsumer struct {
	reader    fetcher
	rec       Recorder
	log       *slog.Logger
	topic     string
	retryBase time.Duration
	retryMax  time.Duration
}

func NewKafkaConsumer(cfg KafkaConfig, rec Recorder, log *slog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaConsumer(reader, cfg.Topic, rec, log), nil
}

func newKafkaConsumer(reader fetcher, topic string, rec Recorder, log *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:    reader,
		rec:       rec,
		log:       log.With(slog.String("source", sourceKafka), slog.String("topic", topic)),
		topic:     topic,
		retryBase: time.Second,
		retryMax:  10 * time.Second,
	}
}

// Run consumes until ctx is done and then closes the reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("reader_close", slog.Any("err", err))
		}
	}()
	c.log.Info("consumer_start")

	backoff := c.retryBase
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.log.Info("consumer_stop", slog.String("reason", "context"))
				return nil
			}
			c.log.Error("fetch_err", slog.Any("err", err))
			if !c.sleep(ctx, &backoff) {
				c.log.Info("consumer_stop", slog.String("reason", "shutdown"))
				return nil
			}
			continue
		}
		backoff = c.retryBase

		if !c.process(ctx, msg) {
			c.log.Info("consumer_stop", slog.String("reason", "shutdown"))
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit_err", slog.Any("err", err), slog.Int64("offset", msg.Offset))
		}
	}
}

// process records msg, retrying while storage is unavailable. It returns
// false if ctx ended before the message was settled.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) bool {
	backoff := c.retryBase
	for {
		err := handle(ctx, c.rec, sourceKafka, msg.Value, c.log)
		switch {
		case err == nil:
			return true
		case retryable(err):
			c.log.Warn("record_retry", slog.Any("err", err), slog.Int64("offset", msg.Offset), slog.Int("partition", msg.Partition))
			if !c.sleep(ctx, &backoff) {
				return false
			}
		default:
			c.log.Error("handle_err", slog.Any("err", err), slog.Int64("offset", msg.Offset), slog.Int("partition", msg.Partition))
			return true
		}
	}
}

func (c *KafkaConsumer) sleep(ctx context.Context, backoff *time.Duration) bool {
	select {
	case <-time.After(*backoff):
		if *backoff < c.retryMax {
			*backoff *= 2
		}
		return true
	case <-ctx.Done():
		return false
	}
}
