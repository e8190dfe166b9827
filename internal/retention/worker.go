// Package retention deletes activity records that have aged out of the
// retention window. Sessions and user statistics are never touched.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/devpulse/internal/store"
)

// Deleter is the slice of the activity store the sweep needs.
type Deleter interface {
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Worker periodically sweeps activities older than Window.
type Worker struct {
	repo      Deleter
	window    time.Duration
	batchSize int
	interval  time.Duration
	retry     store.RetryPolicy
	now       func() time.Time
}

// Defaults used when NewWorker is given non-positive values.
const (
	DefaultWindow    = 30 * 24 * time.Hour
	DefaultBatchSize = 500
	DefaultInterval  = time.Hour
)

// NewWorker creates a retention worker. Each pass deletes at most batchSize
// records; a sweep runs every interval. Non-positive settings fall back to
// the defaults.
func NewWorker(repo Deleter, window time.Duration, batchSize int, interval time.Duration, retry store.RetryPolicy) *Worker {
	if window <= 0 {
		window = DefaultWindow
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		repo:      repo,
		window:    window,
		batchSize: batchSize,
		interval:  interval,
		retry:     retry,
		now:       time.Now,
	}
}

// SetClock replaces the clock used to compute the cutoff.
func (w *Worker) SetClock(now func() time.Time) {
	w.now = now
}

// Run sweeps on every tick until ctx is done. It always returns nil so a
// failing sweep never takes the server down.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", w.interval, "window", w.window, "batch_size", w.batchSize)

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				slog.Error("Retention sweep failed", "error", err)
			}
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep deletes activities older than the window in passes of at most
// batchSize, stopping after the first short pass. It returns the number of
// records deleted.
func (w *Worker) Sweep(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.window)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var deleted int64
		err := store.Transact(ctx, w.retry, func(ctx context.Context) error {
			n, err := w.repo.DeleteActivitiesBefore(ctx, cutoff, w.batchSize)
			deleted = n
			return err
		})
		if err != nil {
			return total, fmt.Errorf("delete activities before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		total += deleted

		if deleted < int64(w.batchSize) {
			break
		}
	}

	if total > 0 {
		slog.Info("Retention sweep completed", "deleted", total, "cutoff", cutoff)
	}
	return total, nil
}
