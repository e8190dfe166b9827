package domain

import (
	"time"
)

// Session is the aggregate of one user's activity inside a 30-minute
// wall-clock bucket. It has no terminal state; later events for the same
// bucket keep updating it.
//
// Durations are stored in milliseconds. ProductiveTime + WastedTime always
// equals TotalDuration.
type Session struct {
	SessionID         string              `json:"sessionId"`
	UserID            string              `json:"userId"`
	ProjectName       string              `json:"projectName"`
	StartTime         time.Time           `json:"startTime"`
	EndTime           *time.Time          `json:"endTime,omitempty"`
	TotalDuration     int64               `json:"totalDuration"`
	ProductiveTime    int64               `json:"productiveTime"`
	WastedTime        int64               `json:"wastedTime"`
	Activities        []ProcessedActivity `json:"activities"`
	ProductivityScore float64             `json:"productivityScore"`
	FilesModified     []string            `json:"filesModified"`
	Languages         []string            `json:"languages"`

	// Version is the optimistic-concurrency token of the stored row.
	Version int64 `json:"-"`
}

// HasFile reports whether path is already in the session's file set.
func (s *Session) HasFile(path string) bool {
	return contains(s.FilesModified, path)
}

// HasLanguage reports whether lang is already in the session's language set.
func (s *Session) HasLanguage(lang string) bool {
	return contains(s.Languages, lang)
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
