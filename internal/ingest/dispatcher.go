package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/devpulse/internal/aggregate"
	"github.com/ashureev/devpulse/internal/analysis"
	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/store"
)

// BatchResult is the acknowledgement returned by the batch path.
type BatchResult struct {
	Success        bool   `json:"success"`
	ProcessedCount int    `json:"processedCount"`
	Message        string `json:"message"`
}

// Dispatcher validates activities, annotates them and folds them into the
// session and user-statistics aggregates. It holds no per-event state and is
// safe for concurrent use.
type Dispatcher struct {
	activities store.ActivityRepository
	sessions   *aggregate.SessionAggregator
	stats      *aggregate.UserStatsAggregator
	now        func() time.Time
	newID      func() string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(activities store.ActivityRepository, sessions *aggregate.SessionAggregator, stats *aggregate.UserStatsAggregator) *Dispatcher {
	return &Dispatcher{
		activities: activities,
		sessions:   sessions,
		stats:      stats,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetClock replaces the clock used for processing and creation timestamps.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

func (d *Dispatcher) configured() error {
	switch {
	case d.activities == nil:
		return &InternalError{Op: "dispatch", Err: &ConfigurationError{Component: "activity store"}}
	case d.sessions == nil:
		return &InternalError{Op: "dispatch", Err: &ConfigurationError{Component: "session aggregator"}}
	case d.stats == nil:
		return &InternalError{Op: "dispatch", Err: &ConfigurationError{Component: "user stats aggregator"}}
	}
	return nil
}

// Validate checks that a carries every required field.
func Validate(a *domain.Activity) error {
	switch {
	case a == nil:
		return invalid("", "is empty")
	case a.UserID == "":
		return invalid("userId", "is required")
	case a.Timestamp.IsZero():
		return invalid("timestamp", "is required")
	case a.Kind == "":
		return invalid("activityType", "is required")
	case !a.Kind.Valid():
		return invalid("activityType", fmt.Sprintf("%q is not a known kind", a.Kind))
	case a.ProjectName == "":
		return invalid("projectName", "is required")
	case a.FilePath == "":
		return invalid("filePath", "is required")
	}
	return nil
}

// Submit stores a new activity record and processes it. An activity that
// already exists is not stored again; if it was already processed it is
// returned unchanged so that redelivered events are not folded twice.
func (d *Dispatcher) Submit(ctx context.Context, a *domain.Activity) (*domain.Activity, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}
	if err := d.configured(); err != nil {
		return nil, err
	}

	if a.ID != "" {
		existing, err := d.activities.GetActivity(ctx, a.ID)
		if err != nil {
			return nil, &InternalError{Op: "load activity", Err: err}
		}
		if existing != nil {
			if existing.Processed {
				slog.Info("activity already processed, skipping", "activity_id", existing.ID, "user_id", existing.UserID)
				return existing, nil
			}
			if err := d.Process(ctx, existing); err != nil {
				return existing, err
			}
			return existing, nil
		}
	} else {
		a.ID = d.newID()
	}

	a.Processed = false
	a.ProcessedAt = nil
	a.IsProductive = nil
	a.SessionID = ""
	a.CreatedAt = d.now()
	if err := d.activities.InsertActivity(ctx, a); err != nil {
		return nil, &InternalError{Op: "store activity", Err: err}
	}

	if err := d.Process(ctx, a); err != nil {
		return a, err
	}
	return a, nil
}

// Process runs the single-event path on a stored activity: classify, resolve
// its session, fold it into the session and then the user statistics, and
// mark it processed. Aggregate writes that already committed are not undone
// when a later step fails.
func (d *Dispatcher) Process(ctx context.Context, a *domain.Activity) error {
	if err := Validate(a); err != nil {
		return err
	}
	if err := d.configured(); err != nil {
		return err
	}

	productive := analysis.Classify(a)
	sessionID := analysis.ResolveSessionID(a.UserID, a.Timestamp)
	p := a.Annotate(productive, sessionID)

	if _, err := d.sessions.Apply(ctx, p); err != nil {
		slog.Error("session update failed", "activity_id", a.ID, "session_id", sessionID, "error", err)
		return &InternalError{Op: "session update", Err: err}
	}
	if _, err := d.stats.Apply(ctx, a.UserID, p); err != nil {
		slog.Error("user stats update failed", "activity_id", a.ID, "user_id", a.UserID, "error", err)
		return &InternalError{Op: "user stats update", Err: err}
	}

	processedAt := d.now()
	if a.ID != "" {
		err := d.activities.MarkActivityProcessed(ctx, a.ID, productive, sessionID, processedAt)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Error("failed to mark activity processed", "activity_id", a.ID, "error", err)
			return &InternalError{Op: "mark processed", Err: err}
		}
	}

	a.IsProductive = &productive
	a.SessionID = sessionID
	a.Processed = true
	a.ProcessedAt = &processedAt

	slog.Info("activity processed",
		"activity_id", a.ID,
		"user_id", a.UserID,
		"session_id", sessionID,
		"productive", productive,
	)
	return nil
}

// ProcessBatch runs the batch path for callerID. Every element must belong
// to the caller; all are validated, annotated and stored in one
// all-or-nothing write. Aggregates are not updated here; only the
// single-event path folds sessions and user statistics.
func (d *Dispatcher) ProcessBatch(ctx context.Context, callerID string, payload []byte) (BatchResult, error) {
	if callerID == "" {
		return BatchResult{Message: "User must be authenticated"}, ErrUnauthenticated
	}

	raws, err := DecodeBatch(payload)
	if err != nil {
		return BatchResult{Message: err.Error()}, err
	}
	for i, raw := range raws {
		if raw.UserID != "" && raw.UserID != callerID {
			err := fmt.Errorf("activity %d: %w", i, invalid("userId", "must match the caller"))
			return BatchResult{Message: err.Error()}, err
		}
	}
	return d.StoreBatch(ctx, raws)
}

// StoreBatch validates, annotates and stores already decoded activities.
func (d *Dispatcher) StoreBatch(ctx context.Context, raws []RawActivity) (BatchResult, error) {
	if len(raws) == 0 {
		return BatchResult{Success: true, Message: "No activities to process"}, nil
	}
	if d.activities == nil {
		err := &InternalError{Op: "batch write", Err: &ConfigurationError{Component: "activity store"}}
		return BatchResult{Message: "Failed to process activities"}, err
	}

	now := d.now()
	records := make([]*domain.Activity, 0, len(raws))
	for i, raw := range raws {
		a, err := raw.ToActivity()
		if err != nil {
			err = fmt.Errorf("activity %d: %w", i, err)
			return BatchResult{Message: err.Error()}, err
		}

		productive := analysis.Classify(a)
		processedAt := now
		a.ID = d.newID()
		a.IsProductive = &productive
		a.SessionID = analysis.ResolveSessionID(a.UserID, a.Timestamp)
		a.Processed = true
		a.ProcessedAt = &processedAt
		a.CreatedAt = now
		records = append(records, a)
	}

	if err := d.activities.InsertActivities(ctx, records); err != nil {
		slog.Error("activity batch write failed", "count", len(records), "error", err)
		return BatchResult{Message: "Failed to process activities"}, &InternalError{Op: "batch write", Err: err}
	}

	slog.Info("activity batch stored", "count", len(records))
	return BatchResult{
		Success:        true,
		ProcessedCount: len(records),
		Message:        fmt.Sprintf("Successfully processed %d activities", len(records)),
	}, nil
}
