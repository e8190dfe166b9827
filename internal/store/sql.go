package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/devpulse/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax for the underlying driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Repository on database/sql. The same schema and
// queries serve SQLite and Postgres; only placeholders differ.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Repository = (*SQLStore)(nil)

// Open creates a repository for the named driver ("sqlite" or "postgres").
// For sqlite, dsn is a file path; for postgres, a postgres:// URL.
func Open(driver, dsn string) (*SQLStore, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		return NewSQLite(dsn)
	case DialectPostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLite creates a new SQLite-backed repository and applies migrations.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if err := Migrate(SQLiteURL(dbPath)); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	// WAL lets readers proceed while a writer holds the lock; busy_timeout
	// absorbs most short lock waits before SQLITE_BUSY surfaces.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: DialectSQLite}, nil
}

// NewPostgres creates a Postgres-backed repository and applies migrations.
func NewPostgres(dsn string) (*SQLStore, error) {
	if !isPostgresURL(dsn) {
		return nil, errors.New("DATABASE_URL must be a postgres:// URL")
	}

	if err := Migrate(dsn); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: DialectPostgres}, nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Activities
// ---------------------------------------------------------------------------

const insertActivityQuery = `
	INSERT INTO activities (
		id, user_id, ts_ms, ts_offset_sec, kind, project_name, file_path, metadata,
		is_productive, session_id, processed, processed_at_ms, created_at_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectActivityColumns = `
	SELECT id, user_id, ts_ms, ts_offset_sec, kind, project_name, file_path, metadata,
	       is_productive, session_id, processed, processed_at_ms, created_at_ms
	FROM activities`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) insertActivity(ctx context.Context, ex execer, a *domain.Activity) error {
	var metadata any
	if a.Metadata != nil {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	var productive any
	if a.IsProductive != nil {
		productive = boolToInt(*a.IsProductive)
	}
	var sessionID any
	if a.SessionID != "" {
		sessionID = a.SessionID
	}
	var processedAt any
	if a.ProcessedAt != nil {
		processedAt = a.ProcessedAt.UnixMilli()
	}

	_, offset := a.Timestamp.Zone()
	_, err := ex.ExecContext(ctx, s.rebind(insertActivityQuery),
		a.ID, a.UserID, a.Timestamp.UnixMilli(), offset, string(a.Kind),
		a.ProjectName, a.FilePath, metadata,
		productive, sessionID, boolToInt(a.Processed), processedAt,
		a.CreatedAt.UnixMilli(),
	)
	return err
}

// InsertActivity stores a single activity record.
func (s *SQLStore) InsertActivity(ctx context.Context, a *domain.Activity) error {
	if err := s.insertActivity(ctx, s.db, a); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// InsertActivities stores all records in a single transaction.
func (s *SQLStore) InsertActivities(ctx context.Context, activities []*domain.Activity) (err error) {
	if len(activities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back activity batch", "error", rbErr)
			}
		}
	}()

	for i, a := range activities {
		if err = s.insertActivity(ctx, tx, a); err != nil {
			return fmt.Errorf("insert activity %d of batch: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var (
		a                       domain.Activity
		kind                    string
		tsMS, createdMS         int64
		offset                  int
		metadata, sessionID     sql.NullString
		productive, processedAt sql.NullInt64
		processed               int64
	)

	if err := row.Scan(
		&a.ID, &a.UserID, &tsMS, &offset, &kind, &a.ProjectName, &a.FilePath, &metadata,
		&productive, &sessionID, &processed, &processedAt, &createdMS,
	); err != nil {
		return nil, err
	}

	a.Kind = domain.ActivityKind(kind)
	a.Timestamp = time.UnixMilli(tsMS).In(zoneForOffset(offset))
	a.CreatedAt = time.UnixMilli(createdMS).UTC()
	a.SessionID = sessionID.String
	a.Processed = processed != 0

	if metadata.Valid && metadata.String != "" {
		var md domain.Metadata
		if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		a.Metadata = &md
	}
	if productive.Valid {
		v := productive.Int64 != 0
		a.IsProductive = &v
	}
	if processedAt.Valid {
		ts := time.UnixMilli(processedAt.Int64).UTC()
		a.ProcessedAt = &ts
	}

	return &a, nil
}

// GetActivity retrieves an activity by ID.
func (s *SQLStore) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectActivityColumns+` WHERE id = ?`), id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan activity row: %w", err)
	}
	return a, nil
}

// MarkActivityProcessed annotates an activity with its verdict and session.
func (s *SQLStore) MarkActivityProcessed(ctx context.Context, id string, productive bool, sessionID string, processedAt time.Time) error {
	query := `UPDATE activities SET is_productive = ?, session_id = ?, processed = 1, processed_at_ms = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, s.rebind(query), boolToInt(productive), sessionID, processedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark activity processed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark activity %s processed: %w", id, ErrNotFound)
	}
	return nil
}

// ListRecentActivities returns a user's activities, newest first.
func (s *SQLStore) ListRecentActivities(ctx context.Context, userID string, limit int) ([]*domain.Activity, error) {
	query := selectActivityColumns + ` WHERE user_id = ? ORDER BY ts_ms DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close activity rows", "error", closeErr)
		}
	}()

	var out []*domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

// DeleteActivitiesBefore removes up to limit activities with a timestamp
// older than cutoff, oldest first.
func (s *SQLStore) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM activities WHERE id IN (
			SELECT id FROM activities WHERE ts_ms < ? ORDER BY ts_ms LIMIT ?
		)`
	result, err := s.db.ExecContext(ctx, s.rebind(query), cutoff.UnixMilli(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete old activities: %w", err)
	}
	return result.RowsAffected()
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// GetSession retrieves a session and its current version.
func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, doc FROM sessions WHERE session_id = ?`), sessionID)

	var version int64
	var doc string
	err := row.Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	session.Version = version
	return &session, nil
}

// CreateSession inserts a new session at version 1.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
		INSERT INTO sessions (session_id, user_id, start_ms, version, doc, updated_at_ms)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (session_id) DO NOTHING`
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		session.SessionID, session.UserID, session.StartTime.UnixMilli(), string(doc), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := expectOneRow(result, "create session "+session.SessionID); err != nil {
		return err
	}
	session.Version = 1
	return nil
}

// UpdateSession replaces the session document if the stored version still
// matches session.Version.
func (s *SQLStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
		UPDATE sessions SET doc = ?, version = version + 1, updated_at_ms = ?
		WHERE session_id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		string(doc), time.Now().UnixMilli(), session.SessionID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := expectOneRow(result, "update session "+session.SessionID); err != nil {
		return err
	}
	session.Version++
	return nil
}

// ListUserSessions returns a user's sessions, latest start first.
func (s *SQLStore) ListUserSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	query := `SELECT version, doc FROM sessions WHERE user_id = ? ORDER BY start_ms DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var out []*domain.Session
	for rows.Next() {
		var version int64
		var doc string
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(doc), &session); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		session.Version = version
		out = append(out, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// User statistics
// ---------------------------------------------------------------------------

// GetUserStats retrieves a user's statistics and current version.
func (s *SQLStore) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, doc FROM user_stats WHERE user_id = ?`), userID)

	var version int64
	var doc string
	err := row.Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user stats row: %w", err)
	}

	var stats domain.UserStats
	if err := json.Unmarshal([]byte(doc), &stats); err != nil {
		return nil, fmt.Errorf("decode user stats %s: %w", userID, err)
	}
	if stats.DailyStats == nil {
		stats.DailyStats = make(map[string]domain.DailyBucket)
	}
	stats.Version = version
	return &stats, nil
}

// CreateUserStats inserts a new statistics record at version 1.
func (s *SQLStore) CreateUserStats(ctx context.Context, stats *domain.UserStats) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode user stats: %w", err)
	}

	query := `
		INSERT INTO user_stats (user_id, version, doc, updated_at_ms)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`
	result, err := s.db.ExecContext(ctx, s.rebind(query), stats.UserID, string(doc), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("create user stats: %w", err)
	}
	if err := expectOneRow(result, "create user stats "+stats.UserID); err != nil {
		return err
	}
	stats.Version = 1
	return nil
}

// UpdateUserStats replaces the statistics document if the stored version
// still matches stats.Version.
func (s *SQLStore) UpdateUserStats(ctx context.Context, stats *domain.UserStats) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode user stats: %w", err)
	}

	query := `
		UPDATE user_stats SET doc = ?, version = version + 1, updated_at_ms = ?
		WHERE user_id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		string(doc), time.Now().UnixMilli(), stats.UserID, stats.Version,
	)
	if err != nil {
		return fmt.Errorf("update user stats: %w", err)
	}
	if err := expectOneRow(result, "update user stats "+stats.UserID); err != nil {
		return err
	}
	stats.Version++
	return nil
}

// expectOneRow turns a zero-row write into ErrConflict.
func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func zoneForOffset(offset int) *time.Location {
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", offset)
}
