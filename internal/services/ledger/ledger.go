// Package ledger owns every balance read and write for the two wallet pools
// of a user: the primary wallet on the users row and the provider wallet.
//
// Mutations run in a single database transaction holding row locks, with a
// bounded retry on lock timeouts and deadlocks.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/infra/metrics"
	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
	"github.com/fastprodman/providerwallet/internal/repos/users"
	pgusers "github.com/fastprodman/providerwallet/internal/repos/users/postgres"
	"github.com/fastprodman/providerwallet/internal/repos/wallets"
	pgwallets "github.com/fastprodman/providerwallet/internal/repos/wallets/postgres"
)

// Config bounds wallet lock waits. MaxAttempts counts the first try, so the
// default allows three retries.
type Config struct {
	LockTimeout     time.Duration `env:"LEDGER_LOCK_TIMEOUT" default:"5s" validate:"gt=0"`
	MaxAttempts     int           `env:"LEDGER_MAX_ATTEMPTS" default:"4" validate:"min=1,max=10"`
	DefaultCurrency string        `env:"LEDGER_DEFAULT_CURRENCY" default:"USD" validate:"len=3"`
	BackoffMin      time.Duration `env:"LEDGER_BACKOFF_MIN" default:"100ms"`
	BackoffMax      time.Duration `env:"LEDGER_BACKOFF_MAX" default:"300ms" validate:"gtefield=BackoffMin"`
}

type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// TransferResult describes a move between the pools. On ErrProviderWalletFunded
// it carries the current state and a zero Amount.
type TransferResult struct {
	Amount   decimal.Decimal
	Primary  decimal.Decimal
	Provider decimal.Decimal
	Currency string
}

type Adjustment struct {
	Old      decimal.Decimal
	New      decimal.Decimal
	Currency string
}

type Ledger struct {
	db      *sql.DB
	users   users.Users
	wallets wallets.Wallets
	metrics *metrics.Metrics
	cfg     Config

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n time.Duration) time.Duration
}

func New(db *sql.DB, cfg Config, m *metrics.Metrics) *Ledger {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}

	return &Ledger{
		db:      db,
		users:   pgusers.New(db),
		wallets: pgwallets.New(db),
		metrics: m,
		cfg:     cfg,
		sleep:   sleepCtx,
		jitter:  randDuration,
	}
}

func (l *Ledger) GetProviderBalance(ctx context.Context, userID uint64) (Balance, error) {
	w, err := l.wallets.Get(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("get provider balance: %w", err)
	}

	return Balance{Amount: w.Balance, Currency: w.Currency}, nil
}

func (l *Ledger) GetPrimaryBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	balance, err := l.users.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get primary balance: %w", err)
	}

	return balance, nil
}

// EnsureProviderWallet creates an empty provider wallet in the default
// currency if the user has none, and returns the wallet either way.
func (l *Ledger) EnsureProviderWallet(ctx context.Context, userID uint64) (wallets.Wallet, error) {
	_, err := l.users.GetBalance(ctx, userID)
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("ensure provider wallet: %w", err)
	}

	err = pgutils.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		return l.wallets.Ensure(ctx, tx, userID, l.cfg.DefaultCurrency)
	})
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("ensure provider wallet: %w", err)
	}

	w, err := l.wallets.Get(ctx, userID)
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("ensure provider wallet: %w", err)
	}

	return w, nil
}
