package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFS embeds the portable schema shared by the SQLite and Postgres drivers.
//
//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending up migrations to the database at databaseURL
// (sqlite://path or postgres://...). Already being at the latest version is
// not an error.
func Migrate(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("migrate: database URL is empty")
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SQLiteURL builds the migrate URL for a SQLite database file.
func SQLiteURL(dbPath string) string {
	return "sqlite://" + dbPath
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
