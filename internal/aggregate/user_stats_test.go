package aggregate

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDayKeyUsesLocation(t *testing.T) {
	ts := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)
	if got := DayKey(ts, time.UTC); got != "2024-06-01" {
		t.Errorf("DayKey UTC = %q", got)
	}
	tokyo := time.FixedZone("JST", 9*3600)
	if got := DayKey(ts, tokyo); got != "2024-06-02" {
		t.Errorf("DayKey JST = %q", got)
	}
}

func TestNewUserStats(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	productive := NewUserStats("u1", processed("u1", now, "/a.go", true, ""), time.Minute, "2024-06-01", now)
	if productive.CurrentStreak != 1 || productive.LongestStreak != 1 || productive.TotalSessions != 1 {
		t.Errorf("streak fields = %d/%d/%d", productive.CurrentStreak, productive.LongestStreak, productive.TotalSessions)
	}
	if productive.TotalHours != 1.0/60 || productive.ProductiveHours != 1.0/60 || productive.AverageProductivity != 100 {
		t.Errorf("totals = %v/%v avg %v", productive.TotalHours, productive.ProductiveHours, productive.AverageProductivity)
	}
	day := productive.DailyStats["2024-06-01"]
	if day.TotalTime != 60_000 || day.ProductiveTime != 60_000 || day.Activities != 1 || day.Sessions != 1 {
		t.Errorf("day bucket = %+v", day)
	}

	wasted := NewUserStats("u1", processed("u1", now, "/a.md", false, ""), time.Minute, "2024-06-01", now)
	if wasted.ProductiveHours != 0 || wasted.AverageProductivity != 0 || wasted.DailyStats["2024-06-01"].WastedTime != 60_000 {
		t.Errorf("unproductive seed = %+v", wasted)
	}
}

func TestFoldUserStatsKeepsOtherDays(t *testing.T) {
	now := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	u := NewUserStats("u1", processed("u1", now, "/a.go", true, ""), time.Minute, "2024-06-01", now)

	FoldUserStats(u, processed("u1", now, "/a.go", false, ""), time.Minute, "2024-06-02", now)
	FoldUserStats(u, processed("u1", now, "/a.go", true, ""), time.Minute, "2024-06-02", now)

	yesterday := u.DailyStats["2024-06-01"]
	if yesterday.Activities != 1 || yesterday.TotalTime != 60_000 {
		t.Errorf("previous day changed: %+v", yesterday)
	}
	today := u.DailyStats["2024-06-02"]
	if today.Activities != 2 || today.TotalTime != 120_000 || today.ProductiveTime != 60_000 || today.WastedTime != 60_000 {
		t.Errorf("today = %+v", today)
	}
	if today.Sessions != 0 {
		t.Errorf("sessions counter = %d; it is only seeded on creation", today.Sessions)
	}
	if u.CurrentStreak != 1 || u.LongestStreak != 1 || u.TotalSessions != 1 {
		t.Errorf("streak fields changed: %d/%d/%d", u.CurrentStreak, u.LongestStreak, u.TotalSessions)
	}

	want := u.ProductiveHours / u.TotalHours * 100
	if math.Abs(u.AverageProductivity-want) > 1e-9 {
		t.Errorf("averageProductivity = %v, want %v", u.AverageProductivity, want)
	}
	if math.Abs(u.TotalHours-3.0/60) > 1e-12 {
		t.Errorf("totalHours = %v, want 3 minutes", u.TotalHours)
	}
}

func TestUserStatsApply(t *testing.T) {
	repo := newTestStore(t)
	agg := NewUserStatsAggregator(repo, time.Minute, testRetry, time.UTC)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	agg.SetClock(fixedClock(now))
	ctx := context.Background()

	// The event timestamp is from another day; the bucket follows the clock.
	eventTime := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

	outcome, err := agg.Apply(ctx, "u1", processed("u1", eventTime, "/a.go", true, ""))
	if err != nil || outcome != OutcomeCreated {
		t.Fatalf("first Apply = %v, %v", outcome, err)
	}
	outcome, err = agg.Apply(ctx, "u1", processed("u1", eventTime, "/a.txt", false, ""))
	if err != nil || outcome != OutcomeUpdated {
		t.Fatalf("second Apply = %v, %v", outcome, err)
	}

	got, err := repo.GetUserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if _, ok := got.DailyStats["2024-05-20"]; ok {
		t.Error("bucket keyed by event date; want processing date")
	}
	day := got.DailyStats["2024-06-01"]
	if day.Activities != 2 || day.TotalTime != 120_000 {
		t.Errorf("day bucket = %+v", day)
	}
	if math.Abs(got.AverageProductivity-50) > 1e-9 {
		t.Errorf("averageProductivity = %v, want 50", got.AverageProductivity)
	}
	if !got.LastActive.Equal(now) {
		t.Errorf("lastActive = %v, want %v", got.LastActive, now)
	}
}

type racingStatsRepo struct {
	store.UserStatsRepository
	once  sync.Once
	rival func()
}

func (r *racingStatsRepo) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	u, err := r.UserStatsRepository.GetUserStats(ctx, userID)
	r.once.Do(r.rival)
	return u, err
}

func TestUserStatsApplyRacingCreates(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var rivalOutcome Outcome
	var rivalErr error
	racing := &racingStatsRepo{UserStatsRepository: repo}
	racing.rival = func() {
		rival := NewUserStatsAggregator(repo, time.Minute, testRetry, time.UTC)
		rival.SetClock(fixedClock(now))
		rivalOutcome, rivalErr = rival.Apply(ctx, "u1", processed("u1", now, "/a.go", true, ""))
	}

	racer := NewUserStatsAggregator(racing, time.Minute, testRetry, time.UTC)
	racer.SetClock(fixedClock(now))
	outcome, err := racer.Apply(ctx, "u1", processed("u1", now, "/b.go", true, ""))
	if err != nil || rivalErr != nil {
		t.Fatalf("Apply errors: racer %v, rival %v", err, rivalErr)
	}
	if rivalOutcome != OutcomeCreated || outcome != OutcomeUpdated {
		t.Fatalf("outcomes = rival %v, racer %v", rivalOutcome, outcome)
	}

	got, err := repo.GetUserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if got.DailyStats["2024-06-01"].Activities != 2 {
		t.Errorf("activities = %d, want 2", got.DailyStats["2024-06-01"].Activities)
	}
	if math.Abs(got.TotalHours-2.0/60) > 1e-12 {
		t.Errorf("totalHours = %v, want 2 minutes", got.TotalHours)
	}
}
