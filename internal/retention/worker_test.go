package retention

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/store"
)

var testRetry = store.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func seed(t *testing.T, repo *store.SQLStore, n int, ts time.Time) {
	t.Helper()
	batch := make([]*domain.Activity, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, &domain.Activity{
			ID:          fmt.Sprintf("%s-%d", ts.Format("20060102"), i),
			UserID:      "u1",
			Timestamp:   ts.Add(time.Duration(i) * time.Second),
			Kind:        domain.KindCoding,
			ProjectName: "P",
			FilePath:    "/a.go",
			CreatedAt:   ts,
		})
	}
	if err := repo.InsertActivities(context.Background(), batch); err != nil {
		t.Fatalf("InsertActivities: %v", err)
	}
}

func TestSweepDeletesInPasses(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "devpulse.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	seed(t, repo, 7, now.Add(-40*24*time.Hour))
	seed(t, repo, 2, now.Add(-time.Hour))

	w := NewWorker(repo, 30*24*time.Hour, 3, time.Hour, testRetry)
	w.SetClock(func() time.Time { return now })

	deleted, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 7 {
		t.Errorf("deleted = %d, want 7", deleted)
	}

	left, err := repo.ListRecentActivities(context.Background(), "u1", 100)
	if err != nil {
		t.Fatalf("ListRecentActivities: %v", err)
	}
	if len(left) != 2 {
		t.Errorf("remaining = %d, want 2 recent activities", len(left))
	}
}

type countingDeleter struct {
	results []int64
	calls   int
	limits  []int
}

func (d *countingDeleter) DeleteActivitiesBefore(_ context.Context, _ time.Time, limit int) (int64, error) {
	d.limits = append(d.limits, limit)
	n := d.results[d.calls]
	d.calls++
	return n, nil
}

func TestSweepOutOfRangeSettingsUseDefaults(t *testing.T) {
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	for _, batch := range []int{0, -1} {
		t.Run(fmt.Sprintf("batch %d", batch), func(t *testing.T) {
			d := &cutoffDeleter{results: []int64{DefaultBatchSize, 3}}
			w := NewWorker(d, 0, batch, 0, testRetry)
			w.SetClock(func() time.Time { return now })

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			deleted, err := w.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			if deleted != DefaultBatchSize+3 || len(d.limits) != 2 {
				t.Errorf("deleted %d in %d passes, want %d in 2", deleted, len(d.limits), DefaultBatchSize+3)
			}
			for _, l := range d.limits {
				if l != DefaultBatchSize {
					t.Errorf("pass limit = %d, want %d", l, DefaultBatchSize)
				}
			}
			if want := now.Add(-DefaultWindow); !d.cutoff.Equal(want) {
				t.Errorf("cutoff = %v, want %v", d.cutoff, want)
			}
		})
	}
}

type cutoffDeleter struct {
	results []int64
	limits  []int
	cutoff  time.Time
}

func (d *cutoffDeleter) DeleteActivitiesBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	d.cutoff = cutoff
	d.limits = append(d.limits, limit)
	if len(d.limits) > len(d.results) {
		return 0, nil
	}
	return d.results[len(d.limits)-1], nil
}

func TestSweepStopsOnShortPass(t *testing.T) {
	d := &countingDeleter{results: []int64{500, 500, 12, 500}}
	w := NewWorker(d, time.Hour, 500, time.Hour, testRetry)

	deleted, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1012 || d.calls != 3 {
		t.Errorf("deleted %d in %d passes, want 1012 in 3", deleted, d.calls)
	}
	for _, l := range d.limits {
		if l != 500 {
			t.Errorf("pass limit = %d, want 500", l)
		}
	}
}

func TestSweepHonorsCancellation(t *testing.T) {
	d := &countingDeleter{results: []int64{500}}
	w := NewWorker(d, time.Hour, 500, time.Hour, testRetry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Sweep = %v, want context.Canceled", err)
	}
	if d.calls != 0 {
		t.Errorf("deleted after cancellation: %d calls", d.calls)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	w := NewWorker(&countingDeleter{results: []int64{0, 0, 0, 0}}, time.Hour, 500, time.Hour, testRetry)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
