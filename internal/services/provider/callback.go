package provider

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

const (
	codeSuccess = 0
	codeFailure = 1

	msgSuccess = "Success"
	msgFailure = "Transaction failed"
)

type settlement struct {
	balance   decimal.Decimal
	duplicate bool
}

// HandleCallback processes one provider callback. It never returns an error:
// every outcome is an encrypted response envelope, and failures carry a
// generic message with the detail logged locally.
func (a *Adapter) HandleCallback(ctx context.Context, env codec.Envelope) CallbackResponse {
	kind := "unknown"

	msg, err := a.openCallback(env)
	if err == nil {
		kind = string(msg.Kind())

		var res settlement

		res, err = a.dispatch(ctx, msg)
		if err == nil {
			outcome := "ok"
			if res.duplicate {
				outcome = "duplicate"
			}

			a.metrics.RecordCallback(kind, outcome)

			return a.reply(codeSuccess, msgSuccess, res.balance.StringFixed(2))
		}
	}

	attrs := []any{"agency_uid", env.AgencyUID, "kind", kind, "error", err}
	if msg != nil {
		attrs = append(attrs, "member_account", msg.Account())
	}

	if w, ok := wagerOf(msg); ok {
		attrs = append(attrs, "serial_number", w.SerialNumber, "amount", w.Amount.StringFixed(2))
	}

	slog.Error("provider callback failed", attrs...)

	a.metrics.RecordCallback(kind, failureOutcome(err))

	return a.reply(codeFailure, msgFailure, "0")
}

// openCallback checks the envelope and decrypts it into a typed message.
func (a *Adapter) openCallback(env codec.Envelope) (Message, error) {
	if env.AgencyUID == "" || env.Timestamp == "" || env.Payload == "" {
		return nil, ErrMalformedEnvelope
	}

	if env.AgencyUID != a.cfg.AgencyUID {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAgency, env.AgencyUID)
	}

	if !a.codec.ValidateTimestamp(string(env.Timestamp), a.cfg.TimestampTolerance) {
		return nil, fmt.Errorf("%w: %s", ErrExpiredTimestamp, env.Timestamp)
	}

	plaintext, err := a.codec.Decrypt(env.Payload)
	if err != nil {
		return nil, err
	}

	return DecodeMessage(plaintext)
}

func (a *Adapter) dispatch(ctx context.Context, msg Message) (settlement, error) {
	userID, err := a.sessions.ResolveAccount(ctx, msg.Account())
	if err != nil {
		return settlement{}, err
	}

	switch m := msg.(type) {
	case BetMessage:
		return a.settleWager(ctx, userID, transactions.KindBet, m.Wager, m.Amount.Neg())
	case WinMessage:
		return a.settleWager(ctx, userID, transactions.KindWin, m.Wager, m.Amount)
	case BalanceMessage:
		return a.balance(ctx, userID)
	default:
		return settlement{}, fmt.Errorf("%w: unsupported kind %q", ErrInvalidMessage, msg.Kind())
	}
}

func (a *Adapter) balance(ctx context.Context, userID uint64) (settlement, error) {
	bal, err := a.ledger.GetProviderBalance(ctx, userID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return settlement{balance: decimal.Zero}, nil
	}

	if err != nil {
		return settlement{}, err
	}

	return settlement{balance: bal.Amount}, nil
}

// settleWager applies a bet or win exactly once per serial number. A known
// serial returns the balance recorded for it without moving money.
func (a *Adapter) settleWager(ctx context.Context, userID uint64, kind transactions.Kind, w Wager, signed decimal.Decimal) (settlement, error) {
	prior, err := a.sessions.FindTransaction(ctx, w.SerialNumber)
	if err == nil {
		return a.replayed(prior, userID)
	}

	if !errors.Is(err, sessionstore.ErrTransactionNotFound) {
		return settlement{}, err
	}

	var sessionID uuid.NullUUID

	sess, err := a.sessions.ActiveSession(ctx, userID)
	if err != nil {
		return settlement{}, err
	}

	if sess != nil {
		sessionID = uuid.NullUUID{UUID: sess.ID, Valid: true}
	}

	var replay *transactions.Transaction

	adj, err := a.ledger.Settle(ctx, userID, ledger.Mutation{
		Amount: signed,
		Replay: func(tx *sql.Tx) (*ledger.Adjustment, error) {
			replay = nil

			t, err := a.sessions.FindTransactionTx(ctx, tx, w.SerialNumber)
			if errors.Is(err, sessionstore.ErrTransactionNotFound) {
				return nil, nil //nolint:nilnil
			}

			if err != nil {
				return nil, err
			}

			replay = &t

			return &ledger.Adjustment{Old: t.BalanceBefore, New: t.BalanceAfter, Currency: t.Currency}, nil
		},
		Record: func(tx *sql.Tx, adj ledger.Adjustment) error {
			return a.sessions.RecordTransaction(ctx, tx, transactions.Transaction{
				SerialNumber:  w.SerialNumber,
				UserID:        userID,
				SessionID:     sessionID,
				Kind:          kind,
				Amount:        w.Amount,
				Currency:      cmp.Or(w.Currency, adj.Currency),
				ProviderTS:    w.Timestamp,
				BalanceBefore: adj.Old,
				BalanceAfter:  adj.New,
				Status:        transactions.StatusCompleted,
			})
		},
	})

	switch {
	case err == nil && replay != nil:
		return a.replayed(*replay, userID)
	case err == nil:
		return settlement{balance: adj.New}, nil
	case errors.Is(err, sessionstore.ErrDuplicateTransaction):
		// lost an insert race to a concurrent delivery of the same serial
		winner, ferr := a.sessions.FindTransaction(ctx, w.SerialNumber)
		if ferr != nil {
			return settlement{}, errors.Join(err, ferr)
		}

		return a.replayed(winner, userID)
	default:
		return settlement{}, err
	}
}

func (a *Adapter) replayed(t transactions.Transaction, userID uint64) (settlement, error) {
	if t.UserID != userID {
		return settlement{}, fmt.Errorf("%w: serial %q belongs to another account", ErrInvalidMessage, t.SerialNumber)
	}

	slog.Info("duplicate provider callback", "serial_number", t.SerialNumber, "user_id", userID)

	return settlement{balance: t.BalanceAfter, duplicate: true}, nil
}

func (a *Adapter) reply(code int, msg, creditAmount string) CallbackResponse {
	ts := a.codec.GenerateTimestamp()

	payload, err := a.codec.EncryptPayload(balancePayload{CreditAmount: creditAmount, Timestamp: ts}, a.cfg.AgencyUID, ts)
	if err != nil {
		slog.Error("encrypt callback reply", "error", err)
	}

	return CallbackResponse{Code: code, Msg: msg, Payload: payload.Payload}
}

func wagerOf(msg Message) (Wager, bool) {
	switch m := msg.(type) {
	case BetMessage:
		return m.Wager, true
	case WinMessage:
		return m.Wager, true
	default:
		return Wager{}, false
	}
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAgency), errors.Is(err, ErrExpiredTimestamp), errors.Is(err, ErrMalformedEnvelope):
		return "rejected"
	case errors.Is(err, codec.ErrDecode), errors.Is(err, ErrInvalidMessage):
		return "undecodable"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, sessionstore.ErrAccountNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return "unknown_account"
	case errors.Is(err, ledger.ErrLockContention):
		return "busy"
	default:
		return "error"
	}
}
