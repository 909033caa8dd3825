package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mutation is a signed change to the provider wallet plus optional hooks that
// run inside the same locked transaction.
type Mutation struct {
	Amount decimal.Decimal

	// Replay runs after the wallet row is locked. A non-nil Adjustment
	// short-circuits the write and is returned as the result.
	Replay func(tx *sql.Tx) (*Adjustment, error)

	// Record runs after the new balance is written. An error rolls back both.
	Record func(tx *sql.Tx, adj Adjustment) error
}

// AdjustProviderBalance applies a signed amount to the provider wallet.
// Negative amounts debit, positive amounts credit.
func (l *Ledger) AdjustProviderBalance(ctx context.Context, userID uint64, amount decimal.Decimal) (Adjustment, error) {
	return l.Settle(ctx, userID, Mutation{Amount: amount})
}

func (l *Ledger) Settle(ctx context.Context, userID uint64, m Mutation) (Adjustment, error) {
	var out Adjustment

	amount := m.Amount.Round(2)

	err := l.mutate(ctx, "adjust provider balance", func(tx *sql.Tx) error {
		w, err := l.wallets.LockAndGet(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}

		if m.Replay != nil {
			prior, err := m.Replay(tx)
			if err != nil {
				return fmt.Errorf("replay check: %w", err)
			}

			if prior != nil {
				out = *prior
				return nil
			}
		}

		newBalance := w.Balance.Add(amount)
		if newBalance.IsNegative() {
			return fmt.Errorf("balance %s, change %s: %w", w.Balance.StringFixed(2), amount.StringFixed(2), ErrInsufficientFunds)
		}

		err = l.wallets.SetBalance(ctx, tx, userID, newBalance)
		if err != nil {
			return err
		}

		out = Adjustment{Old: w.Balance, New: newBalance, Currency: w.Currency}

		if m.Record != nil {
			err = m.Record(tx, out)
			if err != nil {
				return fmt.Errorf("record: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}

	return out, nil
}
