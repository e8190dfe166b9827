package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/store"
)

// dayKeyLayout formats daily bucket keys as YYYY-MM-DD.
const dayKeyLayout = "2006-01-02"

// UserStatsAggregator folds processed activities into the user's rolling
// statistics. Daily buckets are keyed by the processing date, not by the
// event timestamp.
type UserStatsAggregator struct {
	repo    store.UserStatsRepository
	quantum time.Duration
	retry   store.RetryPolicy
	loc     *time.Location
	now     func() time.Time
}

// NewUserStatsAggregator creates a UserStatsAggregator. Day keys are taken
// in loc (UTC when nil).
func NewUserStatsAggregator(repo store.UserStatsRepository, quantum time.Duration, retry store.RetryPolicy, loc *time.Location) *UserStatsAggregator {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	if loc == nil {
		loc = time.UTC
	}
	return &UserStatsAggregator{repo: repo, quantum: quantum, retry: retry, loc: loc, now: time.Now}
}

// SetClock replaces the processing clock.
func (a *UserStatsAggregator) SetClock(now func() time.Time) {
	a.now = now
}

// DayKey returns the YYYY-MM-DD key for t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyLayout)
}

// Apply folds p into userID's statistics, creating the record on the user's
// first event.
func (a *UserStatsAggregator) Apply(ctx context.Context, userID string, p domain.ProcessedActivity) (Outcome, error) {
	now := a.now()
	today := DayKey(now, a.loc)

	var outcome Outcome
	err := store.Transact(ctx, a.retry, func(ctx context.Context) error {
		current, err := a.repo.GetUserStats(ctx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			outcome = OutcomeCreated
			return a.repo.CreateUserStats(ctx, NewUserStats(userID, p, a.quantum, today, now))
		}
		outcome = OutcomeUpdated
		FoldUserStats(current, p, a.quantum, today, now)
		return a.repo.UpdateUserStats(ctx, current)
	})
	if err != nil {
		return 0, fmt.Errorf("apply activity to user stats %s: %w", userID, err)
	}
	return outcome, nil
}

// NewUserStats builds a user's first statistics record from one event.
// Streaks and the session count start at 1 and are not revisited later.
func NewUserStats(userID string, p domain.ProcessedActivity, quantum time.Duration, today string, now time.Time) *domain.UserStats {
	q := quantum.Milliseconds()
	bucket := domain.DailyBucket{
		Date:       today,
		TotalTime:  q,
		Sessions:   1,
		Activities: 1,
	}

	total := quantum.Hours()
	var productive float64
	if p.IsProductive {
		productive = total
		bucket.ProductiveTime = q
	} else {
		bucket.WastedTime = q
	}

	return &domain.UserStats{
		UserID:              userID,
		TotalHours:          total,
		ProductiveHours:     productive,
		CurrentStreak:       1,
		LongestStreak:       1,
		TotalSessions:       1,
		AverageProductivity: domain.AverageProductivity(productive, total),
		DailyStats:          map[string]domain.DailyBucket{today: bucket},
		LastActive:          now,
		UpdatedAt:           now,
	}
}

// FoldUserStats applies one event to u in place. Only today's bucket is
// touched; other dates are left as they are.
func FoldUserStats(u *domain.UserStats, p domain.ProcessedActivity, quantum time.Duration, today string, now time.Time) {
	q := quantum.Milliseconds()

	bucket := u.Day(today)
	bucket.TotalTime += q
	if p.IsProductive {
		bucket.ProductiveTime += q
	} else {
		bucket.WastedTime += q
	}
	bucket.Activities++

	u.TotalHours += quantum.Hours()
	if p.IsProductive {
		u.ProductiveHours += quantum.Hours()
	}
	u.AverageProductivity = domain.AverageProductivity(u.ProductiveHours, u.TotalHours)

	if u.DailyStats == nil {
		u.DailyStats = make(map[string]domain.DailyBucket)
	}
	u.DailyStats[today] = bucket
	u.LastActive = now
	u.UpdatedAt = now
}
