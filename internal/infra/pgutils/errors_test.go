package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("fn: %w", fmt.Errorf("lock wallet: %w", &pgconn.PgError{Code: code}))
	}

	tests := []struct {
		name       string
		err        error
		unique     bool
		contention bool
	}{
		{name: "unique", err: wrap("23505"), unique: true},
		{name: "lock_timeout", err: wrap("55P03"), contention: true},
		{name: "deadlock", err: wrap("40P01"), contention: true},
		{name: "check_violation", err: wrap("23514")},
		{name: "plain", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Fatalf("IsUniqueViolation: want %v, got %v", tt.unique, got)
			}

			if got := IsLockContention(tt.err); got != tt.contention {
				t.Fatalf("IsLockContention: want %v, got %v", tt.contention, got)
			}
		})
	}
}
