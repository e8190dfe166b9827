package analysis

import (
	"strconv"
	"time"
)

// SessionWindow is the width of the wall-clock grid sessions are aligned to.
const SessionWindow = 30 * time.Minute

// SessionStart truncates ts to the start of its 30-minute bucket using ts's
// own calendar fields and location.
func SessionStart(ts time.Time) time.Time {
	minute := ts.Minute() / 30 * 30
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute, 0, 0, ts.Location())
}

// ResolveSessionID returns the session key for a user's event at ts:
// userID, an underscore, and the bucket start in epoch milliseconds.
func ResolveSessionID(userID string, ts time.Time) string {
	return userID + "_" + strconv.FormatInt(SessionStart(ts).UnixMilli(), 10)
}
