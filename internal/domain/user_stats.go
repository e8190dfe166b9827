package domain

import (
	"time"
)

// DailyBucket is one calendar day's rollup inside UserStats. Times are in
// milliseconds.
type DailyBucket struct {
	Date           string `json:"date"`
	TotalTime      int64  `json:"totalTime"`
	ProductiveTime int64  `json:"productiveTime"`
	WastedTime     int64  `json:"wastedTime"`
	Sessions       int    `json:"sessions"`
	Activities     int    `json:"activities"`
}

// UserStats holds a user's cumulative and per-day totals.
type UserStats struct {
	UserID              string                 `json:"userId"`
	TotalHours          float64                `json:"totalHours"`
	ProductiveHours     float64                `json:"productiveHours"`
	CurrentStreak       int                    `json:"currentStreak"`
	LongestStreak       int                    `json:"longestStreak"`
	TotalSessions       int                    `json:"totalSessions"`
	AverageProductivity float64                `json:"averageProductivity"`
	DailyStats          map[string]DailyBucket `json:"dailyStats"`
	LastActive          time.Time              `json:"lastActive"`
	UpdatedAt           time.Time              `json:"updatedAt"`

	// Version is the optimistic-concurrency token of the stored row.
	Version int64 `json:"-"`
}

// Day returns the bucket stored under key, or an empty bucket for that date.
func (u *UserStats) Day(key string) DailyBucket {
	if b, ok := u.DailyStats[key]; ok {
		return b
	}
	return DailyBucket{Date: key}
}

// AverageProductivity derives the productive share of total hours as a
// percentage, or 0 when no time has been recorded.
func AverageProductivity(productiveHours, totalHours float64) float64 {
	if totalHours <= 0 {
		return 0
	}
	return productiveHours / totalHours * 100
}
