package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/repos/users"
)

func (r *usersRepo) SetBalance(ctx context.Context, tx *sql.Tx, userID uint64, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = $2, updated_at = now()
		WHERE id = $1
	`, userID, balance.Round(2))
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return users.ErrUserNotFound
	}

	return nil
}
