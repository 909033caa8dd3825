package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
)

type Balances struct {
	Primary  decimal.Decimal
	Provider decimal.Decimal
	Currency string
}

// Balances reports both pools. A user without a provider wallet has an empty one.
func (a *Adapter) Balances(ctx context.Context, userID uint64) (Balances, error) {
	primary, err := a.ledger.GetPrimaryBalance(ctx, userID)
	if err != nil {
		return Balances{}, fmt.Errorf("balances: %w", err)
	}

	out := Balances{Primary: primary, Provider: decimal.Zero}

	bal, err := a.ledger.GetProviderBalance(ctx, userID)
	switch {
	case err == nil:
		out.Provider = bal.Amount
		out.Currency = bal.Currency
	case errors.Is(err, ledger.ErrWalletNotFound):
	default:
		return Balances{}, fmt.Errorf("balances: %w", err)
	}

	return out, nil
}

// DepositToGame moves the primary balance into the provider wallet.
func (a *Adapter) DepositToGame(ctx context.Context, userID uint64) (ledger.TransferResult, error) {
	res, err := a.ledger.TransferPrimaryToProvider(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("deposit to game: %w", err)
	}

	return res, nil
}

// WithdrawFromGame ends the user's game sessions and returns the provider
// balance to the primary wallet.
func (a *Adapter) WithdrawFromGame(ctx context.Context, userID uint64) (ledger.TransferResult, error) {
	closed, err := a.sessions.CloseUserSessions(ctx, userID)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("withdraw from game: %w", err)
	}

	if closed > 0 {
		slog.Info("closed game sessions before withdraw", "user_id", userID, "count", closed)
	}

	res, err := a.ledger.TransferProviderToPrimary(ctx, userID)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("withdraw from game: %w", err)
	}

	return res, nil
}

func (a *Adapter) CloseSession(ctx context.Context, userID uint64, sessionID uuid.UUID) error {
	return a.sessions.CloseSession(ctx, userID, sessionID)
}

func (a *Adapter) ListTransactions(ctx context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error) {
	return a.sessions.ListUserTransactions(ctx, userID, limit, offset)
}
