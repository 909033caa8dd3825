package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/repos/users"
)

// LockAndGetBalance reads the primary balance and holds the row lock until tx ends.
// NO KEY UPDATE leaves foreign-key checks from other tables unblocked.
func (r *usersRepo) LockAndGetBalance(ctx context.Context, tx *sql.Tx, userID uint64) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRowContext(ctx, `
		SELECT balance
		FROM users
		WHERE id = $1
		FOR NO KEY UPDATE
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, users.ErrUserNotFound
		}

		return decimal.Zero, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}
