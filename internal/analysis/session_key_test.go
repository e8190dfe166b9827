package analysis

import (
	"strconv"
	"testing"
	"time"
)

func TestResolveSessionIDSameBucket(t *testing.T) {
	a := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 5, 10, 29, 59, 999_000_000, time.UTC)

	if ResolveSessionID("u1", a) != ResolveSessionID("u1", b) {
		t.Errorf("expected same key for %v and %v", a, b)
	}
}

func TestResolveSessionIDBoundary(t *testing.T) {
	before := time.Date(2024, 3, 5, 10, 29, 0, 0, time.UTC)
	after := time.Date(2024, 3, 5, 10, 31, 0, 0, time.UTC)

	if ResolveSessionID("u1", before) == ResolveSessionID("u1", after) {
		t.Errorf("expected different keys across the 10:30 boundary")
	}
}

func TestResolveSessionIDFormat(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 47, 12, 0, time.UTC)
	want := "u1_" + strconv.FormatInt(time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC).UnixMilli(), 10)

	if got := ResolveSessionID("u1", ts); got != want {
		t.Errorf("ResolveSessionID = %q, want %q", got, want)
	}
}

func TestResolveSessionIDPerUser(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 5, 0, 0, time.UTC)
	if ResolveSessionID("u1", ts) == ResolveSessionID("u2", ts) {
		t.Errorf("expected keys to differ between users")
	}
}

func TestSessionStartUsesOwnCalendarFields(t *testing.T) {
	// +05:45 does not sit on the UTC half-hour grid.
	loc := time.FixedZone("NPT", 5*3600+45*60)
	ts := time.Date(2024, 3, 5, 10, 15, 30, 0, loc)

	got := SessionStart(ts)
	want := time.Date(2024, 3, 5, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("SessionStart = %v, want %v", got, want)
	}
	if got.Equal(ts.Truncate(SessionWindow)) {
		t.Errorf("expected calendar truncation to differ from absolute truncation in %s", loc)
	}
}
