package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

const selectColumns = `
	SELECT id, serial_number, user_id, session_id, kind, amount, currency, provider_ts,
	       balance_before, balance_after, status, error_message, created_at
	FROM provider_transactions
`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (transactions.Transaction, error) {
	var t transactions.Transaction

	err := row.Scan(
		&t.ID, &t.SerialNumber, &t.UserID, &t.SessionID, &t.Kind, &t.Amount, &t.Currency, &t.ProviderTS,
		&t.BalanceBefore, &t.BalanceAfter, &t.Status, &t.ErrorMessage, &t.CreatedAt,
	)
	if err != nil {
		return transactions.Transaction{}, err
	}

	return t, nil
}

func (r *transactionsRepo) FindBySerial(ctx context.Context, serial string) (transactions.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, selectColumns+"WHERE serial_number = $1", serial))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transactions.Transaction{}, transactions.ErrTransactionNotFound
		}

		return transactions.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}

	return t, nil
}

func (r *transactionsRepo) FindBySerialTx(ctx context.Context, tx *sql.Tx, serial string) (transactions.Transaction, error) {
	t, err := scanTransaction(tx.QueryRowContext(ctx, selectColumns+"WHERE serial_number = $1", serial))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transactions.Transaction{}, transactions.ErrTransactionNotFound
		}

		return transactions.Transaction{}, fmt.Errorf("find transaction in tx: %w", err)
	}

	return t, nil
}

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, t transactions.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO provider_transactions
			(serial_number, user_id, session_id, kind, amount, currency, provider_ts,
			 balance_before, balance_after, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.SerialNumber, t.UserID, t.SessionID, string(t.Kind), t.Amount.Round(2), t.Currency, t.ProviderTS,
		t.BalanceBefore.Round(2), t.BalanceAfter.Round(2), string(t.Status), t.ErrorMessage,
	)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return transactions.ErrDuplicateTransaction
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	out := make([]transactions.Transaction, 0, limit)

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
