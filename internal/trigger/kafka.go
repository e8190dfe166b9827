// Package trigger consumes newly created activity records from Kafka and
// hands each one to the ingestion dispatcher, standing in for a document
// store's on-create trigger.
package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/semaphore"

	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/ingest"
)

const handleTimeout = 30 * time.Second

// Submitter stores and processes one activity.
type Submitter interface {
	Submit(ctx context.Context, a *domain.Activity) (*domain.Activity, error)
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config holds the Kafka connection settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader returns a consumer-group reader for cfg. Offsets are committed
// in the background as messages are read.
func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consumer reads activity messages and dispatches them with bounded
// concurrency.
type Consumer struct {
	reader      MessageReader
	submitter   Submitter
	concurrency int64
	sem         *semaphore.Weighted
}

// NewConsumer creates a Consumer that runs at most concurrency handlers at once.
func NewConsumer(reader MessageReader, submitter Submitter, concurrency int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		reader:      reader,
		submitter:   submitter,
		concurrency: int64(concurrency),
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run consumes until ctx is done or the reader is closed, then waits for
// in-flight handlers and closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Kafka trigger started", "concurrency", c.concurrency)
	defer func() {
		if err := c.reader.Close(); err != nil {
			slog.Warn("Failed to close Kafka reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				break
			}
			slog.Warn("Kafka read failed", "error", err)
			continue
		}

		if err := c.sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(msg kafka.Message) {
			defer c.sem.Release(1)
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
			defer cancel()
			c.Handle(hctx, msg)
		}(msg)
	}

	// Drain in-flight handlers.
	if err := c.sem.Acquire(context.Background(), c.concurrency); err == nil {
		c.sem.Release(c.concurrency)
	}
	slog.Info("Kafka trigger stopped")
	return nil
}

// Handle decodes one message and submits it. Invalid messages are logged
// and dropped. Dispatch failures are logged; redelivery is the transport's
// concern since offsets are committed as messages are read.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	a, err := ingest.DecodeActivity(msg.Value)
	if err != nil {
		slog.Warn("Skipping invalid activity message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		return
	}

	if _, err := c.submitter.Submit(ctx, a); err != nil {
		slog.Error("Activity trigger failed",
			"offset", msg.Offset,
			"activity_id", a.ID,
			"user_id", a.UserID,
			"error", err)
	}
}
