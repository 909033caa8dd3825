package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/repos/wallets"
)

var _ wallets.Wallets = (*walletsRepo)(nil)

type walletsRepo struct{ db *sql.DB }

func New(db *sql.DB) *walletsRepo {
	return &walletsRepo{db: db}
}

const selectWallet = `
	SELECT user_id, balance, currency, is_active, created_at, updated_at
	FROM provider_wallets
	WHERE user_id = $1
`

func scanWallet(row *sql.Row) (wallets.Wallet, error) {
	var w wallets.Wallet

	err := row.Scan(&w.UserID, &w.Balance, &w.Currency, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallets.Wallet{}, wallets.ErrWalletNotFound
		}

		return wallets.Wallet{}, err
	}

	return w, nil
}

func (r *walletsRepo) Get(ctx context.Context, userID uint64) (wallets.Wallet, error) {
	w, err := scanWallet(r.db.QueryRowContext(ctx, selectWallet, userID))
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	return w, nil
}

func (r *walletsRepo) Ensure(ctx context.Context, tx *sql.Tx, userID uint64, currency string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO provider_wallets (user_id, balance, currency)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	return nil
}

func (r *walletsRepo) LockAndGet(ctx context.Context, tx *sql.Tx, userID uint64) (wallets.Wallet, error) {
	w, err := scanWallet(tx.QueryRowContext(ctx, selectWallet+" FOR UPDATE", userID))
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("lock/get wallet: %w", err)
	}

	return w, nil
}

func (r *walletsRepo) SetBalance(ctx context.Context, tx *sql.Tx, userID uint64, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE provider_wallets
		SET balance = $2, updated_at = now()
		WHERE user_id = $1
	`, userID, balance.Round(2))
	if err != nil {
		return fmt.Errorf("set wallet balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return wallets.ErrWalletNotFound
	}

	return nil
}
