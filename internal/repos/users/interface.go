package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUserNotFound = errors.New("user not found")

// User is a platform account. Balance is the primary wallet.
type User struct {
	ID        uint64
	Username  string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

type Users interface {
	Get(ctx context.Context, userID uint64) (User, error)
	GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
	LockAndGetBalance(ctx context.Context, tx *sql.Tx, userID uint64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, tx *sql.Tx, userID uint64, balance decimal.Decimal) error
}
