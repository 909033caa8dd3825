// Package provider talks to the external game provider: it launches games,
// answers provider callbacks for bets, wins and balance checks, and pulls
// transaction history. Every balance change goes through the ledger.
package provider

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/infra/metrics"
	"github.com/fastprodman/providerwallet/internal/repos/sessions"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/repos/users"
	"github.com/fastprodman/providerwallet/internal/repos/wallets"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

type Ledger interface {
	GetProviderBalance(ctx context.Context, userID uint64) (ledger.Balance, error)
	GetPrimaryBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
	EnsureProviderWallet(ctx context.Context, userID uint64) (wallets.Wallet, error)
	TransferPrimaryToProvider(ctx context.Context, userID uint64) (ledger.TransferResult, error)
	TransferProviderToPrimary(ctx context.Context, userID uint64) (ledger.TransferResult, error)
	Settle(ctx context.Context, userID uint64, m ledger.Mutation) (ledger.Adjustment, error)
}

type SessionStore interface {
	BindAccount(ctx context.Context, userID uint64, username string) (string, error)
	ResolveAccount(ctx context.Context, memberAccount string) (uint64, error)
	AccountOf(ctx context.Context, userID uint64) (string, error)
	OpenSession(ctx context.Context, ns sessionstore.NewSession) (sessions.Session, error)
	CloseSession(ctx context.Context, userID uint64, sessionID uuid.UUID) error
	CloseUserSessions(ctx context.Context, userID uint64) (int64, error)
	ActiveSession(ctx context.Context, userID uint64) (*sessions.Session, error)
	FindTransaction(ctx context.Context, serial string) (transactions.Transaction, error)
	FindTransactionTx(ctx context.Context, tx *sql.Tx, serial string) (transactions.Transaction, error)
	RecordTransaction(ctx context.Context, tx *sql.Tx, t transactions.Transaction) error
	ListUserTransactions(ctx context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error)
}

type Users interface {
	Get(ctx context.Context, userID uint64) (users.User, error)
}

var (
	_ Ledger       = (*ledger.Ledger)(nil)
	_ SessionStore = (*sessionstore.Store)(nil)
)

type Deps struct {
	Codec    *codec.Codec
	Ledger   Ledger
	Sessions SessionStore
	Users    Users
	HTTP     *http.Client
	Metrics  *metrics.Metrics
}

type Adapter struct {
	cfg      Config
	codec    *codec.Codec
	ledger   Ledger
	sessions SessionStore
	users    Users
	client   *client
	metrics  *metrics.Metrics
}

func New(cfg Config, d Deps) *Adapter {
	httpClient := d.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: max(cfg.LaunchTimeout, cfg.RequestTimeout) + time.Second}
	}

	return &Adapter{
		cfg:      cfg,
		codec:    d.Codec,
		ledger:   d.Ledger,
		sessions: d.Sessions,
		users:    d.Users,
		client:   &client{http: httpClient, baseURL: cfg.BaseURL, metrics: d.Metrics},
		metrics:  d.Metrics,
	}
}
