package wallets

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrWalletNotFound = errors.New("provider wallet not found")

// Wallet is the provider-facing balance pool a game session spends from.
type Wallet struct {
	UserID    uint64
	Balance   decimal.Decimal
	Currency  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Wallets interface {
	Get(ctx context.Context, userID uint64) (Wallet, error)
	// Ensure creates an empty wallet if none exists. It joins the caller's tx.
	Ensure(ctx context.Context, tx *sql.Tx, userID uint64, currency string) error
	LockAndGet(ctx context.Context, tx *sql.Tx, userID uint64) (Wallet, error)
	SetBalance(ctx context.Context, tx *sql.Tx, userID uint64, balance decimal.Decimal) error
}
