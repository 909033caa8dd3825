package sessionstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/providerwallet/internal/repos/transactions"
)

const maxListLimit = 500

func (s *Store) FindTransaction(ctx context.Context, serial string) (transactions.Transaction, error) {
	t, err := s.txns.FindBySerial(ctx, serial)
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("find transaction %q: %w", serial, err)
	}

	return t, nil
}

// FindTransactionTx reads through tx so rows committed by a concurrent writer
// after tx's wallet lock was granted are visible.
func (s *Store) FindTransactionTx(ctx context.Context, tx *sql.Tx, serial string) (transactions.Transaction, error) {
	t, err := s.txns.FindBySerialTx(ctx, tx, serial)
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("find transaction %q: %w", serial, err)
	}

	return t, nil
}

// RecordTransaction inserts a row inside the caller's tx. A repeated serial
// number yields ErrDuplicateTransaction.
func (s *Store) RecordTransaction(ctx context.Context, tx *sql.Tx, t transactions.Transaction) error {
	err := s.txns.Insert(ctx, tx, t)
	if err != nil {
		return fmt.Errorf("record transaction %q: %w", t.SerialNumber, err)
	}

	return nil
}

func (s *Store) ListUserTransactions(ctx context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	offset = max(offset, 0)

	list, err := s.txns.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}

	return list, nil
}
