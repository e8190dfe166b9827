package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransientStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("syntax error"), false},
		{"sqlite busy", errors.New("exec: SQLITE_BUSY"), true},
		{"sqlite locked text", errors.New("database is locked (5)"), true},
		{"sqlite table locked", errors.New("database table is locked"), true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock wrapped", fmt.Errorf("update session: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientStoreError(tt.err); got != tt.want {
				t.Errorf("IsTransientStoreError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
