package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
	codeDeadlockDetected = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	return ""
}

func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsLockContention reports whether err is a lock wait timeout or a deadlock,
// both of which are safe to retry in a fresh transaction.
func IsLockContention(err error) bool {
	switch pgCode(err) {
	case codeLockNotAvailable, codeDeadlockDetected:
		return true
	default:
		return false
	}
}
