package provider

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

const (
	defaultLanguage = "en"
	defaultPlatform = 1
)

type LaunchOptions struct {
	GameUID  string
	Language string
	Platform int
	HomeURL  string
	Currency string
}

type LaunchResult struct {
	URL           string
	SessionID     uuid.UUID
	MemberAccount string
	CreditAmount  decimal.Decimal
	Currency      string
}

// LaunchGame funds the provider wallet if needed, asks the provider for a
// launch URL and records the session. A wallet transfer made here stays
// committed when the provider call fails, so the launch can be retried.
func (a *Adapter) LaunchGame(ctx context.Context, userID uint64, opts LaunchOptions) (LaunchResult, error) {
	res, err := a.launch(ctx, userID, opts)

	outcome := "ok"
	var rejected *RejectedError

	switch {
	case err == nil:
	case errors.As(err, &rejected):
		outcome = "rejected"
	case errors.Is(err, ErrInsufficientFunds):
		outcome = "insufficient_funds"
	case errors.Is(err, ErrProviderUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}

	a.metrics.RecordLaunch(outcome)

	return res, err
}

func (a *Adapter) launch(ctx context.Context, userID uint64, opts LaunchOptions) (LaunchResult, error) {
	u, err := a.users.Get(ctx, userID)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	funds, err := a.ensureFunds(ctx, userID)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	alias, err := a.sessions.BindAccount(ctx, userID, u.Username)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	credit := funds.Amount
	if a.cfg.MaxCredit.IsPositive() && credit.GreaterThan(a.cfg.MaxCredit) {
		credit = a.cfg.MaxCredit
	}

	credit = credit.Round(2)

	currency := opts.Currency
	if currency == "" {
		currency = funds.Currency
	}

	req := launchRequest{
		Timestamp:     a.codec.GenerateTimestamp(),
		AgencyUID:     a.cfg.AgencyUID,
		MemberAccount: alias,
		GameUID:       opts.GameUID,
		CreditAmount:  credit.StringFixed(2),
		CurrencyCode:  currency,
		Language:      cmp.Or(opts.Language, defaultLanguage),
		HomeURL:       cmp.Or(opts.HomeURL, a.cfg.HomeURL),
		Platform:      opts.Platform,
		CallbackURL:   a.cfg.CallbackURL,
	}

	if req.Platform == 0 {
		req.Platform = defaultPlatform
	}

	env, err := a.codec.EncryptPayload(req, a.cfg.AgencyUID, req.Timestamp)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: encrypt: %w", err)
	}

	resp, err := a.client.post(ctx, "launch", a.cfg.LaunchPath, env, a.cfg.LaunchTimeout)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	if resp.Code != 0 {
		rej := newRejectedError(resp.Code, resp.Msg)
		slog.Warn("provider rejected launch",
			"user_id", userID, "game_uid", opts.GameUID, "code", resp.Code, "msg", resp.Msg)

		return LaunchResult{}, fmt.Errorf("launch game: %w", rej)
	}

	launchURL, err := a.launchURL(resp.Payload)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	sess, err := a.sessions.OpenSession(ctx, sessionstore.NewSession{
		UserID:        userID,
		MemberAccount: alias,
		GameUID:       opts.GameUID,
		LaunchURL:     launchURL,
		CreditAmount:  credit,
		Currency:      currency,
	})
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch game: %w", err)
	}

	slog.Info("game launched",
		"user_id", userID, "game_uid", opts.GameUID, "session_id", sess.ID, "credit", req.CreditAmount)

	return LaunchResult{
		URL:           launchURL,
		SessionID:     sess.ID,
		MemberAccount: alias,
		CreditAmount:  credit,
		Currency:      currency,
	}, nil
}

// ensureFunds returns the provider balance available to a new session,
// creating the wallet and pulling the primary balance into it when empty.
func (a *Adapter) ensureFunds(ctx context.Context, userID uint64) (ledger.Balance, error) {
	bal, err := a.ledger.GetProviderBalance(ctx, userID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		w, eerr := a.ledger.EnsureProviderWallet(ctx, userID)
		if eerr != nil {
			return ledger.Balance{}, eerr
		}

		bal, err = ledger.Balance{Amount: w.Balance, Currency: w.Currency}, nil
	}

	if err != nil {
		return ledger.Balance{}, err
	}

	if bal.Amount.IsPositive() {
		return bal, nil
	}

	res, err := a.ledger.TransferPrimaryToProvider(ctx, userID)

	switch {
	case err == nil, errors.Is(err, ledger.ErrProviderWalletFunded):
		// funded either by us or by a concurrent request
		return ledger.Balance{Amount: res.Provider, Currency: res.Currency}, nil
	case errors.Is(err, ledger.ErrNoFundsAvailable):
		return ledger.Balance{}, ErrInsufficientFunds
	default:
		return ledger.Balance{}, err
	}
}

// launchURL extracts game_launch_url from a success reply. The payload is
// normally ciphertext, but some replies carry the JSON object or the bare URL
// in plaintext.
func (a *Adapter) launchURL(payload json.RawMessage) (string, error) {
	var body launchResponse

	var s string
	if json.Unmarshal(payload, &s) != nil {
		// payload is an inline JSON object
		err := json.Unmarshal(payload, &body)
		if err != nil || body.GameLaunchURL == "" {
			return "", fmt.Errorf("%w: no game_launch_url", ErrBadProviderResponse)
		}

		return body.GameLaunchURL, nil
	}

	s = strings.TrimSpace(s)

	err := a.codec.DecryptPayload(s, &body)
	if err == nil && body.GameLaunchURL != "" {
		return body.GameLaunchURL, nil
	}

	switch {
	case strings.HasPrefix(s, "{"):
		err = json.Unmarshal([]byte(s), &body)
		if err == nil && body.GameLaunchURL != "" {
			return body.GameLaunchURL, nil
		}
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		return s, nil
	}

	return "", fmt.Errorf("%w: no game_launch_url", ErrBadProviderResponse)
}
