package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("provider account not found")
	ErrAccountTaken    = errors.New("provider account already bound")
	ErrSessionNotFound = errors.New("game session not found")
)

// Session is one game launch. Amounts are fixed at insert time.
type Session struct {
	ID            uuid.UUID
	UserID        uint64
	MemberAccount string
	GameUID       string
	LaunchURL     string
	CreditAmount  decimal.Decimal
	Currency      string
	IsActive      bool
	OpenedAt      time.Time
	ClosedAt      *time.Time
}

type Sessions interface {
	AccountByUser(ctx context.Context, userID uint64) (string, error)
	UserByAccount(ctx context.Context, memberAccount string) (uint64, error)
	// InsertAccount returns ErrAccountTaken when either the alias or the user
	// is already bound.
	InsertAccount(ctx context.Context, memberAccount string, userID uint64) error

	Insert(ctx context.Context, tx *sql.Tx, s Session) error
	CloseActive(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error)
	Close(ctx context.Context, userID uint64, sessionID uuid.UUID) error
	Active(ctx context.Context, userID uint64) (*Session, error)
}
