// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
)

var (
	// ErrConflict is returned when an optimistic write loses to a concurrent
	// writer: the row changed since it was read, or a create found an
	// existing row.
	ErrConflict = errors.New("store: concurrent modification")

	// ErrNotFound is returned when an update targets a row that does not exist.
	ErrNotFound = errors.New("store: not found")
)

// ActivityRepository persists raw and annotated activity records.
type ActivityRepository interface {
	// InsertActivity stores a single activity record.
	InsertActivity(ctx context.Context, a *domain.Activity) error

	// InsertActivities stores all records in one transaction; either every
	// record is written or none is.
	InsertActivities(ctx context.Context, activities []*domain.Activity) error

	// GetActivity retrieves an activity by ID. Returns nil, nil when missing.
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)

	// MarkActivityProcessed annotates an activity in place.
	MarkActivityProcessed(ctx context.Context, id string, productive bool, sessionID string, processedAt time.Time) error

	// ListRecentActivities returns a user's activities, newest first.
	ListRecentActivities(ctx context.Context, userID string, limit int) ([]*domain.Activity, error)

	// DeleteActivitiesBefore removes up to limit activities older than cutoff.
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// SessionRepository persists session aggregates with versioned writes.
type SessionRepository interface {
	// GetSession retrieves a session by key. Returns nil, nil when missing.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// CreateSession inserts a new session at version 1. Returns ErrConflict
	// if the key already exists.
	CreateSession(ctx context.Context, s *domain.Session) error

	// UpdateSession replaces the stored session if its version still equals
	// s.Version, then advances s.Version. Returns ErrConflict otherwise.
	UpdateSession(ctx context.Context, s *domain.Session) error

	// ListUserSessions returns a user's sessions, latest start first.
	ListUserSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error)
}

// UserStatsRepository persists per-user statistics with versioned writes.
type UserStatsRepository interface {
	// GetUserStats retrieves statistics by user. Returns nil, nil when missing.
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)

	// CreateUserStats inserts a new record at version 1. Returns ErrConflict
	// if the user already has one.
	CreateUserStats(ctx context.Context, u *domain.UserStats) error

	// UpdateUserStats replaces the stored record if its version still equals
	// u.Version, then advances u.Version. Returns ErrConflict otherwise.
	UpdateUserStats(ctx context.Context, u *domain.UserStats) error
}

// Repository is the full persistence surface.
type Repository interface {
	ActivityRepository
	SessionRepository
	UserStatsRepository

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
