package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// TransferPrimaryToProvider moves the whole primary balance into the provider
// wallet. It never tops up a provider wallet that already holds funds.
func (l *Ledger) TransferPrimaryToProvider(ctx context.Context, userID uint64) (TransferResult, error) {
	var res TransferResult

	err := l.mutate(ctx, "transfer primary to provider", func(tx *sql.Tx) error {
		primary, err := l.users.LockAndGetBalance(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock primary: %w", err)
		}

		err = l.wallets.Ensure(ctx, tx, userID, l.cfg.DefaultCurrency)
		if err != nil {
			return err
		}

		w, err := l.wallets.LockAndGet(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}

		res = TransferResult{Primary: primary, Provider: w.Balance, Currency: w.Currency}

		if !primary.IsPositive() {
			return ErrNoFundsAvailable
		}

		if w.Balance.IsPositive() {
			return ErrProviderWalletFunded
		}

		provider := w.Balance.Add(primary).Round(2)

		err = l.users.SetBalance(ctx, tx, userID, decimal.Zero)
		if err != nil {
			return err
		}

		err = l.wallets.SetBalance(ctx, tx, userID, provider)
		if err != nil {
			return err
		}

		res = TransferResult{Amount: primary, Primary: decimal.Zero, Provider: provider, Currency: w.Currency}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProviderWalletFunded) {
			return res, err
		}

		return TransferResult{}, err
	}

	slog.Info("funds moved to provider wallet", "user_id", userID, "amount", res.Amount.StringFixed(2))

	return res, nil
}

// TransferProviderToPrimary moves the whole provider balance back to the
// primary wallet. Locks are taken in the same order as the forward transfer.
func (l *Ledger) TransferProviderToPrimary(ctx context.Context, userID uint64) (TransferResult, error) {
	var res TransferResult

	err := l.mutate(ctx, "transfer provider to primary", func(tx *sql.Tx) error {
		primary, err := l.users.LockAndGetBalance(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock primary: %w", err)
		}

		w, err := l.wallets.LockAndGet(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}

		if !w.Balance.IsPositive() {
			return ErrNoFundsAvailable
		}

		newPrimary := primary.Add(w.Balance).Round(2)

		err = l.wallets.SetBalance(ctx, tx, userID, decimal.Zero)
		if err != nil {
			return err
		}

		err = l.users.SetBalance(ctx, tx, userID, newPrimary)
		if err != nil {
			return err
		}

		res = TransferResult{Amount: w.Balance, Primary: newPrimary, Provider: decimal.Zero, Currency: w.Currency}

		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	slog.Info("funds returned to primary wallet", "user_id", userID, "amount", res.Amount.StringFixed(2))

	return res, nil
}
