// Package sessionstore keeps the provider-facing records of a player: the
// member account alias, game sessions, and provider transaction rows used
// for idempotency and audit.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
	sessionrepo "github.com/fastprodman/providerwallet/internal/repos/sessions"
	pgsessions "github.com/fastprodman/providerwallet/internal/repos/sessions/postgres"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/providerwallet/internal/repos/transactions/postgres"
)

var (
	ErrAccountNotFound      = sessionrepo.ErrAccountNotFound
	ErrSessionNotFound      = sessionrepo.ErrSessionNotFound
	ErrTransactionNotFound  = transactions.ErrTransactionNotFound
	ErrDuplicateTransaction = transactions.ErrDuplicateTransaction
)

type Config struct {
	AccountPrefix string `env:"PROVIDER_ACCOUNT_PREFIX" default:"h5" validate:"max=8"`
	AccountLength int    `env:"PROVIDER_ACCOUNT_LENGTH" default:"12" validate:"min=4,max=32"`
}

// NewSession is what a successful launch knows about the session it opened.
type NewSession struct {
	UserID        uint64
	MemberAccount string
	GameUID       string
	LaunchURL     string
	CreditAmount  decimal.Decimal
	Currency      string
}

type Store struct {
	db       *sql.DB
	sessions sessionrepo.Sessions
	txns     transactions.Transactions
	cfg      Config
	now      func() time.Time
}

func New(db *sql.DB, cfg Config) *Store {
	return &Store{
		db:       db,
		sessions: pgsessions.New(db),
		txns:     pgtransactions.New(db),
		cfg:      cfg,
		now:      time.Now,
	}
}

// BindAccount returns the user's provider alias, creating the mapping on first
// use. When the derived alias already belongs to someone else, an id-based
// alias is bound instead.
func (s *Store) BindAccount(ctx context.Context, userID uint64, username string) (string, error) {
	alias, err := s.sessions.AccountByUser(ctx, userID)
	if err == nil {
		return alias, nil
	}

	if !errors.Is(err, sessionrepo.ErrAccountNotFound) {
		return "", fmt.Errorf("bind account: %w", err)
	}

	for _, candidate := range []string{s.deriveAlias(username), s.fallbackAlias(userID)} {
		err = s.sessions.InsertAccount(ctx, candidate, userID)
		if err == nil {
			return candidate, nil
		}

		if !errors.Is(err, sessionrepo.ErrAccountTaken) {
			return "", fmt.Errorf("bind account: %w", err)
		}

		// a concurrent launch may have bound this user first
		alias, err = s.sessions.AccountByUser(ctx, userID)
		if err == nil {
			return alias, nil
		}

		slog.Warn("provider alias taken", "user_id", userID, "alias", candidate)
	}

	return "", fmt.Errorf("bind account for user %d: %w", userID, sessionrepo.ErrAccountTaken)
}

func (s *Store) ResolveAccount(ctx context.Context, memberAccount string) (uint64, error) {
	userID, err := s.sessions.UserByAccount(ctx, memberAccount)
	if err != nil {
		return 0, fmt.Errorf("resolve account: %w", err)
	}

	return userID, nil
}

// AccountOf returns the user's bound alias without creating one.
func (s *Store) AccountOf(ctx context.Context, userID uint64) (string, error) {
	alias, err := s.sessions.AccountByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("account of user %d: %w", userID, err)
	}

	return alias, nil
}

// deriveAlias lowercases the username, keeps only [a-z0-9] and fits the
// result to the configured length after the prefix, padding with zeros.
func (s *Store) deriveAlias(username string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(username) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return fit(s.cfg.AccountPrefix, b.String(), s.cfg.AccountLength)
}

func (s *Store) fallbackAlias(userID uint64) string {
	prefix := s.cfg.AccountPrefix + "u"
	width := max(s.cfg.AccountLength-len(prefix), 1)

	return prefix + fmt.Sprintf("%0*d", width, userID)
}

func fit(prefix, body string, length int) string {
	n := length - len(prefix)
	if n <= 0 {
		return prefix
	}

	if len(body) > n {
		return prefix + body[:n]
	}

	return prefix + body + strings.Repeat("0", n-len(body))
}

// OpenSession supersedes any active session of the user and records the new one.
func (s *Store) OpenSession(ctx context.Context, ns NewSession) (sessionrepo.Session, error) {
	sess := sessionrepo.Session{
		ID:            uuid.New(),
		UserID:        ns.UserID,
		MemberAccount: ns.MemberAccount,
		GameUID:       ns.GameUID,
		LaunchURL:     ns.LaunchURL,
		CreditAmount:  ns.CreditAmount.Round(2),
		Currency:      ns.Currency,
		IsActive:      true,
		OpenedAt:      s.now().UTC(),
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		closed, err := s.sessions.CloseActive(ctx, tx, ns.UserID)
		if err != nil {
			return err
		}

		if closed > 0 {
			slog.Debug("superseded active sessions", "user_id", ns.UserID, "count", closed)
		}

		return s.sessions.Insert(ctx, tx, sess)
	})
	if err != nil {
		return sessionrepo.Session{}, fmt.Errorf("open session: %w", err)
	}

	return sess, nil
}

func (s *Store) CloseSession(ctx context.Context, userID uint64, sessionID uuid.UUID) error {
	err := s.sessions.Close(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}

func (s *Store) CloseUserSessions(ctx context.Context, userID uint64) (int64, error) {
	var closed int64

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error

		closed, err = s.sessions.CloseActive(ctx, tx, userID)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("close user sessions: %w", err)
	}

	return closed, nil
}

// ActiveSession returns the latest active session, or nil when there is none.
func (s *Store) ActiveSession(ctx context.Context, userID uint64) (*sessionrepo.Session, error) {
	sess, err := s.sessions.Active(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}

	return sess, nil
}
