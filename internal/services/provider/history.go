package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

const (
	maxHistoryPageSize     = 5000
	defaultHistoryPageSize = 100
)

type HistoryQuery struct {
	From     time.Time
	To       time.Time
	PageNo   int
	PageSize int
}

type HistoryRecord struct {
	SerialNumber  string              `json:"serial_number"`
	MemberAccount string              `json:"member_account"`
	GameUID       string              `json:"game_uid"`
	GameRound     string              `json:"game_round"`
	BetAmount     decimal.NullDecimal `json:"bet_amount"`
	WinAmount     decimal.NullDecimal `json:"win_amount"`
	CurrencyCode  string              `json:"currency_code"`
	Timestamp     json.Number         `json:"timestamp"`
}

type HistoryPage struct {
	Total    int             `json:"total"`
	PageNo   int             `json:"page_no"`
	PageSize int             `json:"page_size"`
	Records  []HistoryRecord `json:"records"`
}

// TransactionHistory fetches one page of the agency's provider-side
// transaction log. Dates are sent as epoch milliseconds.
func (a *Adapter) TransactionHistory(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return HistoryPage{}, err
	}

	req := historyRequest{
		Timestamp: a.codec.GenerateTimestamp(),
		AgencyUID: a.cfg.AgencyUID,
		FromDate:  q.From.UnixMilli(),
		ToDate:    q.To.UnixMilli(),
		PageNo:    q.PageNo,
		PageSize:  q.PageSize,
	}

	env, err := a.codec.EncryptPayload(req, a.cfg.AgencyUID, req.Timestamp)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("transaction history: encrypt: %w", err)
	}

	resp, err := a.client.post(ctx, "history", a.cfg.HistoryPath, env, a.cfg.RequestTimeout)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("transaction history: %w", err)
	}

	if resp.Code != 0 {
		return HistoryPage{}, fmt.Errorf("transaction history: %w", newRejectedError(resp.Code, resp.Msg))
	}

	var ciphertext string

	err = json.Unmarshal(resp.Payload, &ciphertext)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("transaction history: %w: payload is not a string", ErrBadProviderResponse)
	}

	var page HistoryPage

	err = a.codec.DecryptPayload(ciphertext, &page)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("transaction history: %w", err)
	}

	if page.PageNo == 0 {
		page.PageNo = q.PageNo
	}

	if page.PageSize == 0 {
		page.PageSize = q.PageSize
	}

	return page, nil
}

// TransactionHistoryFor returns the records of one provider history page that
// belong to the user's member account. Paging still walks the agency log, and
// Total counts only the records kept from this page.
func (a *Adapter) TransactionHistoryFor(ctx context.Context, userID uint64, q HistoryQuery) (HistoryPage, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return HistoryPage{}, err
	}

	empty := HistoryPage{PageNo: q.PageNo, PageSize: q.PageSize, Records: []HistoryRecord{}}

	alias, err := a.sessions.AccountOf(ctx, userID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrAccountNotFound) {
			return empty, nil
		}

		return HistoryPage{}, fmt.Errorf("transaction history: %w", err)
	}

	page, err := a.TransactionHistory(ctx, q)
	if err != nil {
		return HistoryPage{}, err
	}

	own := make([]HistoryRecord, 0, len(page.Records))

	for _, r := range page.Records {
		if r.MemberAccount == alias {
			own = append(own, r)
		}
	}

	page.Records = own
	page.Total = len(own)

	return page, nil
}

func normalizeQuery(q HistoryQuery) (HistoryQuery, error) {
	if q.From.IsZero() || q.To.IsZero() {
		return q, fmt.Errorf("%w: from and to are required", ErrInvalidQuery)
	}

	if q.To.Before(q.From) {
		return q, fmt.Errorf("%w: to is before from", ErrInvalidQuery)
	}

	if q.PageNo < 1 {
		q.PageNo = 1
	}

	switch {
	case q.PageSize <= 0:
		q.PageSize = defaultHistoryPageSize
	case q.PageSize > maxHistoryPageSize:
		q.PageSize = maxHistoryPageSize
	}

	return q, nil
}
