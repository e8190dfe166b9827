// Package domain contains core domain types for devpulse.
package domain

import (
	"time"
)

// ActivityKind is the kind of developer activity a tool observed.
type ActivityKind string

const (
	KindCoding        ActivityKind = "coding"
	KindDebugging     ActivityKind = "debugging"
	KindFileOperation ActivityKind = "file_operation"
	KindInactivity    ActivityKind = "inactivity"
)

// Valid reports whether k is one of the known activity kinds.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindCoding, KindDebugging, KindFileOperation, KindInactivity:
		return true
	}
	return false
}

// Metadata carries optional details reported alongside an activity.
type Metadata struct {
	Language     string `json:"language,omitempty"`
	FileSize     *int64 `json:"fileSize,omitempty"`
	LinesChanged *int   `json:"linesChanged,omitempty"`
}

// Activity is one observation from a development tool. Producers create it;
// the dispatcher annotates it in place once it has been folded.
type Activity struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Timestamp    time.Time    `json:"timestamp"`
	Kind         ActivityKind `json:"activityType"`
	ProjectName  string       `json:"projectName"`
	FilePath     string       `json:"filePath"`
	Metadata     *Metadata    `json:"metadata,omitempty"`
	IsProductive *bool        `json:"isProductive,omitempty"`
	SessionID    string       `json:"sessionId,omitempty"`
	Processed    bool         `json:"processed"`
	ProcessedAt  *time.Time   `json:"processedAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Language returns the metadata language, or "" when none was reported.
func (a *Activity) Language() string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.Language
}

// ProcessedActivity is an activity annotated with its verdict and session key.
// It is the unit folded into sessions and user statistics.
type ProcessedActivity struct {
	UserID       string       `json:"userId"`
	Timestamp    time.Time    `json:"timestamp"`
	Kind         ActivityKind `json:"activityType"`
	ProjectName  string       `json:"projectName"`
	FilePath     string       `json:"filePath"`
	Metadata     *Metadata    `json:"metadata,omitempty"`
	IsProductive bool         `json:"isProductive"`
	SessionID    string       `json:"sessionId"`
}

// Language returns the metadata language, or "" when none was reported.
func (p *ProcessedActivity) Language() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata.Language
}

// Annotate builds the processed form of a.
func (a *Activity) Annotate(productive bool, sessionID string) ProcessedActivity {
	return ProcessedActivity{
		UserID:       a.UserID,
		Timestamp:    a.Timestamp,
		Kind:         a.Kind,
		ProjectName:  a.ProjectName,
		FilePath:     a.FilePath,
		Metadata:     a.Metadata,
		IsProductive: productive,
		SessionID:    sessionID,
	}
}
