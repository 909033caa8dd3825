package transactions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

type Kind string

const (
	KindBet      Kind = "bet"
	KindWin      Kind = "win"
	KindBalance  Kind = "balance"
	KindRollback Kind = "rollback"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Transaction is one provider-initiated wallet event, keyed by the provider's
// serial number.
type Transaction struct {
	ID            int64
	SerialNumber  string
	UserID        uint64
	SessionID     uuid.NullUUID
	Kind          Kind
	Amount        decimal.Decimal
	Currency      string
	ProviderTS    int64
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Status        Status
	ErrorMessage  sql.NullString
	CreatedAt     time.Time
}

type Transactions interface {
	FindBySerial(ctx context.Context, serial string) (Transaction, error)
	FindBySerialTx(ctx context.Context, tx *sql.Tx, serial string) (Transaction, error)
	Insert(ctx context.Context, tx *sql.Tx, t Transaction) error
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]Transaction, error)
}
