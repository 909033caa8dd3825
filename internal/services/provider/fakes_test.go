package provider

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/repos/sessions"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/repos/users"
	"github.com/fastprodman/providerwallet/internal/repos/wallets"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

// fakeWorld is an in-memory stand-in for the database behind the ledger,
// the session store and the users repo. One mutex plays the row lock.
type fakeWorld struct {
	mu        sync.Mutex
	users     map[uint64]users.User
	providers map[uint64]*wallets.Wallet
	aliases   map[string]uint64
	sessions  []sessions.Session
	txns      map[string]transactions.Transaction

	// hidden rows are invisible to FindTransaction until the first insert
	// attempt for the same serial, simulating a concurrent winner.
	hidden map[string]transactions.Transaction
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		users:     map[uint64]users.User{},
		providers: map[uint64]*wallets.Wallet{},
		aliases:   map[string]uint64{},
		txns:      map[string]transactions.Transaction{},
		hidden:    map[string]transactions.Transaction{},
	}
}

func (w *fakeWorld) addUser(id uint64, name, primary string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.users[id] = users.User{ID: id, Username: name, Balance: decimal.RequireFromString(primary)}
}

func (w *fakeWorld) setProvider(id uint64, amount string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.providers[id] = &wallets.Wallet{UserID: id, Balance: decimal.RequireFromString(amount), Currency: "USD", IsActive: true}
}

func (w *fakeWorld) bind(alias string, id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.aliases[alias] = id
}

func (w *fakeWorld) primary(id uint64) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.users[id].Balance
}

func (w *fakeWorld) provider(id uint64) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.providers[id]
	if !ok {
		return decimal.Zero
	}

	return p.Balance
}

func (w *fakeWorld) txnCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.txns)
}

// ---- Users

type fakeUsers struct{ w *fakeWorld }

func (f fakeUsers) Get(_ context.Context, userID uint64) (users.User, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	u, ok := f.w.users[userID]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}

	return u, nil
}

// ---- Ledger

type fakeLedger struct{ w *fakeWorld }

var _ Ledger = fakeLedger{}

func (f fakeLedger) GetProviderBalance(_ context.Context, userID uint64) (ledger.Balance, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	p, ok := f.w.providers[userID]
	if !ok {
		return ledger.Balance{}, ledger.ErrWalletNotFound
	}

	return ledger.Balance{Amount: p.Balance, Currency: p.Currency}, nil
}

func (f fakeLedger) GetPrimaryBalance(_ context.Context, userID uint64) (decimal.Decimal, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	u, ok := f.w.users[userID]
	if !ok {
		return decimal.Zero, ledger.ErrUserNotFound
	}

	return u.Balance, nil
}

func (f fakeLedger) EnsureProviderWallet(_ context.Context, userID uint64) (wallets.Wallet, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	if _, ok := f.w.users[userID]; !ok {
		return wallets.Wallet{}, ledger.ErrUserNotFound
	}

	p, ok := f.w.providers[userID]
	if !ok {
		p = &wallets.Wallet{UserID: userID, Balance: decimal.Zero, Currency: "USD", IsActive: true}
		f.w.providers[userID] = p
	}

	return *p, nil
}

func (f fakeLedger) TransferPrimaryToProvider(_ context.Context, userID uint64) (ledger.TransferResult, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	u, ok := f.w.users[userID]
	if !ok {
		return ledger.TransferResult{}, ledger.ErrUserNotFound
	}

	p, ok := f.w.providers[userID]
	if !ok {
		p = &wallets.Wallet{UserID: userID, Balance: decimal.Zero, Currency: "USD", IsActive: true}
		f.w.providers[userID] = p
	}

	if !u.Balance.IsPositive() {
		return ledger.TransferResult{}, ledger.ErrNoFundsAvailable
	}

	if p.Balance.IsPositive() {
		return ledger.TransferResult{Primary: u.Balance, Provider: p.Balance, Currency: p.Currency}, ledger.ErrProviderWalletFunded
	}

	amount := u.Balance
	p.Balance = p.Balance.Add(amount)
	u.Balance = decimal.Zero
	f.w.users[userID] = u

	return ledger.TransferResult{Amount: amount, Primary: decimal.Zero, Provider: p.Balance, Currency: p.Currency}, nil
}

func (f fakeLedger) TransferProviderToPrimary(_ context.Context, userID uint64) (ledger.TransferResult, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	u, ok := f.w.users[userID]
	if !ok {
		return ledger.TransferResult{}, ledger.ErrUserNotFound
	}

	p, ok := f.w.providers[userID]
	if !ok {
		return ledger.TransferResult{}, ledger.ErrWalletNotFound
	}

	if !p.Balance.IsPositive() {
		return ledger.TransferResult{}, ledger.ErrNoFundsAvailable
	}

	amount := p.Balance
	u.Balance = u.Balance.Add(amount)
	p.Balance = decimal.Zero
	f.w.users[userID] = u

	return ledger.TransferResult{Amount: amount, Primary: u.Balance, Provider: decimal.Zero, Currency: p.Currency}, nil
}

// Settle holds the world lock for the whole unit of work, like a row lock,
// and undoes the balance write when Record fails.
func (f fakeLedger) Settle(_ context.Context, userID uint64, m ledger.Mutation) (ledger.Adjustment, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	p, ok := f.w.providers[userID]
	if !ok {
		return ledger.Adjustment{}, ledger.ErrWalletNotFound
	}

	if m.Replay != nil {
		prior, err := m.Replay(nil)
		if err != nil {
			return ledger.Adjustment{}, err
		}

		if prior != nil {
			return *prior, nil
		}
	}

	newBalance := p.Balance.Add(m.Amount.Round(2))
	if newBalance.IsNegative() {
		return ledger.Adjustment{}, ledger.ErrInsufficientFunds
	}

	adj := ledger.Adjustment{Old: p.Balance, New: newBalance, Currency: p.Currency}
	p.Balance = newBalance

	if m.Record != nil {
		err := m.Record(nil, adj)
		if err != nil {
			p.Balance = adj.Old
			return ledger.Adjustment{}, err
		}
	}

	return adj, nil
}

// ---- SessionStore
//
// Methods reached from inside Settle hooks (FindTransactionTx,
// RecordTransaction) run with the world lock already held.

type fakeStore struct{ w *fakeWorld }

var _ SessionStore = fakeStore{}

func (f fakeStore) BindAccount(_ context.Context, userID uint64, username string) (string, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for alias, id := range f.w.aliases {
		if id == userID {
			return alias, nil
		}
	}

	alias := "h5" + username
	f.w.aliases[alias] = userID

	return alias, nil
}

func (f fakeStore) ResolveAccount(_ context.Context, memberAccount string) (uint64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	id, ok := f.w.aliases[memberAccount]
	if !ok {
		return 0, sessionstore.ErrAccountNotFound
	}

	return id, nil
}

func (f fakeStore) AccountOf(_ context.Context, userID uint64) (string, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for alias, id := range f.w.aliases {
		if id == userID {
			return alias, nil
		}
	}

	return "", sessionstore.ErrAccountNotFound
}

func (f fakeStore) OpenSession(_ context.Context, ns sessionstore.NewSession) (sessions.Session, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for i := range f.w.sessions {
		if f.w.sessions[i].UserID == ns.UserID {
			f.w.sessions[i].IsActive = false
		}
	}

	s := sessions.Session{
		ID:            uuid.New(),
		UserID:        ns.UserID,
		MemberAccount: ns.MemberAccount,
		GameUID:       ns.GameUID,
		LaunchURL:     ns.LaunchURL,
		CreditAmount:  ns.CreditAmount,
		Currency:      ns.Currency,
		IsActive:      true,
		OpenedAt:      time.Now(),
	}
	f.w.sessions = append(f.w.sessions, s)

	return s, nil
}

func (f fakeStore) CloseSession(_ context.Context, userID uint64, sessionID uuid.UUID) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for i := range f.w.sessions {
		if f.w.sessions[i].ID == sessionID && f.w.sessions[i].UserID == userID {
			f.w.sessions[i].IsActive = false
			return nil
		}
	}

	return sessionstore.ErrSessionNotFound
}

func (f fakeStore) CloseUserSessions(_ context.Context, userID uint64) (int64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	var n int64

	for i := range f.w.sessions {
		if f.w.sessions[i].UserID == userID && f.w.sessions[i].IsActive {
			f.w.sessions[i].IsActive = false
			n++
		}
	}

	return n, nil
}

func (f fakeStore) ActiveSession(_ context.Context, userID uint64) (*sessions.Session, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for i := len(f.w.sessions) - 1; i >= 0; i-- {
		if f.w.sessions[i].UserID == userID && f.w.sessions[i].IsActive {
			s := f.w.sessions[i]
			return &s, nil
		}
	}

	return nil, nil //nolint:nilnil
}

func (f fakeStore) FindTransaction(_ context.Context, serial string) (transactions.Transaction, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	t, ok := f.w.txns[serial]
	if !ok {
		return transactions.Transaction{}, sessionstore.ErrTransactionNotFound
	}

	return t, nil
}

func (f fakeStore) FindTransactionTx(_ context.Context, _ *sql.Tx, serial string) (transactions.Transaction, error) {
	t, ok := f.w.txns[serial]
	if !ok {
		return transactions.Transaction{}, sessionstore.ErrTransactionNotFound
	}

	return t, nil
}

func (f fakeStore) RecordTransaction(_ context.Context, _ *sql.Tx, t transactions.Transaction) error {
	if h, ok := f.w.hidden[t.SerialNumber]; ok {
		delete(f.w.hidden, t.SerialNumber)
		f.w.txns[t.SerialNumber] = h

		return sessionstore.ErrDuplicateTransaction
	}

	if _, ok := f.w.txns[t.SerialNumber]; ok {
		return sessionstore.ErrDuplicateTransaction
	}

	f.w.txns[t.SerialNumber] = t

	return nil
}

func (f fakeStore) ListUserTransactions(_ context.Context, userID uint64, _, _ int) ([]transactions.Transaction, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	var out []transactions.Transaction

	for _, t := range f.w.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}

	return out, nil
}
