package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
)

// Message is a decoded callback. The concrete type is fixed at decode time.
type Message interface {
	Kind() transactions.Kind
	Account() string
}

// Wager is the shared body of bet and win callbacks.
type Wager struct {
	MemberAccount string
	SerialNumber  string
	Amount        decimal.Decimal
	Currency      string
	GameUID       string
	GameRound     string
	Timestamp     int64
}

func (w Wager) Account() string { return w.MemberAccount }

type BetMessage struct{ Wager }

func (BetMessage) Kind() transactions.Kind { return transactions.KindBet }

type WinMessage struct{ Wager }

func (WinMessage) Kind() transactions.Kind { return transactions.KindWin }

type BalanceMessage struct {
	MemberAccount string
	Currency      string
}

func (BalanceMessage) Kind() transactions.Kind { return transactions.KindBalance }

func (m BalanceMessage) Account() string { return m.MemberAccount }

type callbackPayload struct {
	MemberAccount string           `json:"member_account"`
	SerialNumber  string           `json:"serial_number"`
	BetAmount     *decimal.Decimal `json:"bet_amount"`
	WinAmount     *decimal.Decimal `json:"win_amount"`
	CurrencyCode  string           `json:"currency_code"`
	GameUID       string           `json:"game_uid"`
	GameRound     string           `json:"game_round"`
	Timestamp     codec.Timestamp  `json:"timestamp"`
}

// DecodeMessage parses a decrypted callback payload. A bet_amount field makes
// it a bet, a win_amount field a win, and anything else a balance inquiry.
func DecodeMessage(plaintext []byte) (Message, error) {
	var p callbackPayload

	err := json.Unmarshal(plaintext, &p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	p.MemberAccount = strings.TrimSpace(p.MemberAccount)
	if p.MemberAccount == "" {
		return nil, fmt.Errorf("%w: member_account is required", ErrInvalidMessage)
	}

	if p.BetAmount == nil && p.WinAmount == nil {
		return BalanceMessage{MemberAccount: p.MemberAccount, Currency: p.CurrencyCode}, nil
	}

	if p.SerialNumber == "" {
		return nil, fmt.Errorf("%w: serial_number is required", ErrInvalidMessage)
	}

	w := Wager{
		MemberAccount: p.MemberAccount,
		SerialNumber:  p.SerialNumber,
		Currency:      p.CurrencyCode,
		GameUID:       p.GameUID,
		GameRound:     p.GameRound,
	}

	if ts := strings.TrimSpace(string(p.Timestamp)); ts != "" {
		w.Timestamp, err = strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q is not epoch milliseconds", ErrInvalidMessage, ts)
		}
	}

	if p.BetAmount != nil {
		w.Amount = p.BetAmount.Round(2)
		if w.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: negative bet_amount", ErrInvalidMessage)
		}

		return BetMessage{Wager: w}, nil
	}

	w.Amount = p.WinAmount.Round(2)
	if w.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative win_amount", ErrInvalidMessage)
	}

	return WinMessage{Wager: w}, nil
}

// CallbackResponse is always returned with HTTP 200.
type CallbackResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Payload string `json:"payload"`
}

type balancePayload struct {
	CreditAmount string `json:"creditAmount"`
	Timestamp    string `json:"timestamp"`
}

type launchRequest struct {
	Timestamp     string `json:"timestamp"`
	AgencyUID     string `json:"agency_uid"`
	MemberAccount string `json:"member_account"`
	GameUID       string `json:"game_uid"`
	CreditAmount  string `json:"credit_amount"`
	CurrencyCode  string `json:"currency_code"`
	Language      string `json:"language"`
	HomeURL       string `json:"home_url"`
	Platform      int    `json:"platform"`
	CallbackURL   string `json:"callback_url"`
}

type launchResponse struct {
	GameLaunchURL string `json:"game_launch_url"`
}

type historyRequest struct {
	Timestamp string `json:"timestamp"`
	AgencyUID string `json:"agency_uid"`
	FromDate  int64  `json:"from_date"`
	ToDate    int64  `json:"to_date"`
	PageNo    int    `json:"page_no"`
	PageSize  int    `json:"page_size"`
}

// providerResponse is the outer reply of every outbound call. Payload is kept
// raw: it is usually a ciphertext string but some replies embed plaintext.
type providerResponse struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Payload json.RawMessage `json:"payload"`
}
