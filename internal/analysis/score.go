package analysis

import (
	"math"
	"time"
)

const (
	maxDurationBonus   = 20.0
	bonusPerHour       = 5.0
	shortSessionCutoff = 15 * time.Minute
	shortSessionMalus  = 10.0
)

// Score computes a 0-100 productivity score from a session's total and
// productive durations. It has no memory of earlier scores.
func Score(total, productive time.Duration) float64 {
	if total <= 0 {
		return 0
	}

	base := float64(productive) / float64(total) * 100
	bonus := math.Min(total.Hours()*bonusPerHour, maxDurationBonus)

	var penalty float64
	if total < shortSessionCutoff {
		penalty = shortSessionMalus
	}

	return math.Max(0, math.Min(100, base+bonus-penalty))
}
