package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/infra/metrics"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/provider"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

const testSecret = "test-secret-0123456789"

// stubGames returns canned results and records what it was called with.
type stubGames struct {
	err error

	launchUser uint64
	launchOpts provider.LaunchOptions
	callback   codec.Envelope
	history    provider.HistoryQuery
	historyFor uint64
	listArgs   [3]int

	// history records returned per caller
	records map[uint64][]provider.HistoryRecord
}

func (s *stubGames) LaunchGame(_ context.Context, userID uint64, opts provider.LaunchOptions) (provider.LaunchResult, error) {
	s.launchUser, s.launchOpts = userID, opts
	if s.err != nil {
		return provider.LaunchResult{}, s.err
	}

	return provider.LaunchResult{
		URL:           "https://play.example/g",
		SessionID:     uuid.MustParse("6f1c2c57-0d7a-4a5e-9d2a-9f4f0c1b2a3d"),
		MemberAccount: "h5alice",
		CreditAmount:  decimal.RequireFromString("500"),
		Currency:      "USD",
	}, nil
}

func (s *stubGames) HandleCallback(_ context.Context, env codec.Envelope) provider.CallbackResponse {
	s.callback = env
	if env.Payload == "" {
		return provider.CallbackResponse{Code: 1, Msg: "Transaction failed", Payload: "enc-zero"}
	}

	return provider.CallbackResponse{Code: 0, Msg: "Success", Payload: "enc-balance"}
}

func (s *stubGames) Balances(_ context.Context, _ uint64) (provider.Balances, error) {
	return provider.Balances{Primary: decimal.RequireFromString("1.5"), Provider: decimal.Zero, Currency: "USD"}, s.err
}

func (s *stubGames) DepositToGame(_ context.Context, _ uint64) (ledger.TransferResult, error) {
	return ledger.TransferResult{Amount: decimal.RequireFromString("10"), Provider: decimal.RequireFromString("10"), Currency: "USD"}, s.err
}

func (s *stubGames) WithdrawFromGame(_ context.Context, _ uint64) (ledger.TransferResult, error) {
	return ledger.TransferResult{Amount: decimal.RequireFromString("10"), Primary: decimal.RequireFromString("10"), Currency: "USD"}, s.err
}

func (s *stubGames) CloseSession(_ context.Context, _ uint64, _ uuid.UUID) error {
	return s.err
}

func (s *stubGames) ListTransactions(_ context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error) {
	s.listArgs = [3]int{int(userID), limit, offset}

	return []transactions.Transaction{{
		SerialNumber:  "X1",
		Kind:          transactions.KindBet,
		Amount:        decimal.RequireFromString("100"),
		Currency:      "USD",
		BalanceBefore: decimal.RequireFromString("500"),
		BalanceAfter:  decimal.RequireFromString("400"),
		Status:        transactions.StatusCompleted,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, s.err
}

func (s *stubGames) TransactionHistoryFor(_ context.Context, userID uint64, q provider.HistoryQuery) (provider.HistoryPage, error) {
	s.history, s.historyFor = q, userID

	own := s.records[userID]

	return provider.HistoryPage{Total: len(own), PageNo: q.PageNo, PageSize: q.PageSize, Records: own}, s.err
}

func newTestRouter(t *testing.T, games Games) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics.New(reg)

	return NewRouter(RouterDeps{
		Games:           games,
		Auth:            NewAuthenticator(testSecret),
		Gatherer:        reg,
		LaunchPerSecond: 1,
		LaunchBurst:     2,
	})
}

func bearer(t *testing.T, userID uint64) string {
	t.Helper()

	tok, err := SignToken(testSecret, userID, time.Hour)
	require.NoError(t, err)

	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, &stubGames{})

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "providerwallet_ledger_lock_retries_total")
}

func TestCallback_AlwaysOK(t *testing.T) {
	games := &stubGames{}
	h := newTestRouter(t, games)

	rec := do(t, h, http.MethodPost, "/provider/callback", "",
		`{"agency_uid":"a","timestamp":1700000000000,"payload":"abc","extra":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0,"msg":"Success","payload":"enc-balance"}`, rec.Body.String())
	assert.Equal(t, codec.Timestamp("1700000000000"), games.callback.Timestamp)

	rec = do(t, h, http.MethodPost, "/provider/callback", "", `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeJSON(t, rec)["code"])
}

func TestAuth(t *testing.T) {
	h := newTestRouter(t, &stubGames{})

	expired, err := SignToken(testSecret, 1, -time.Minute)
	require.NoError(t, err)

	otherKey, err := SignToken("another-secret-xxxxxxxx", 1, time.Hour)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{name: "missing", auth: "", want: http.StatusUnauthorized},
		{name: "not_bearer", auth: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", auth: "Bearer abc", want: http.StatusUnauthorized},
		{name: "expired", auth: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "wrong_key", auth: "Bearer " + otherKey, want: http.StatusUnauthorized},
		{name: "no_subject", auth: "Bearer " + noSubject, want: http.StatusUnauthorized},
		{name: "valid", auth: bearer(t, 1), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/wallet/balances", tt.auth, "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLaunch(t *testing.T) {
	games := &stubGames{}
	h := newTestRouter(t, games)

	rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, 7),
		`{"game_uid":"g-1","language":"de","platform":2,"home_url":"https://casino.example"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.JSONEq(t, `{
		"url":"https://play.example/g",
		"session_id":"6f1c2c57-0d7a-4a5e-9d2a-9f4f0c1b2a3d",
		"member_account":"h5alice",
		"credit_amount":"500.00",
		"currency":"USD"
	}`, rec.Body.String())

	assert.Equal(t, uint64(7), games.launchUser)
	assert.Equal(t, provider.LaunchOptions{GameUID: "g-1", Language: "de", Platform: 2, HomeURL: "https://casino.example"}, games.launchOpts)
}

func TestLaunch_Validation(t *testing.T) {
	h := newTestRouter(t, &stubGames{})

	bodies := []string{
		``,
		`{}`,
		`{"game_uid":"g","platform":3}`,
		`{"game_uid":"g","home_url":"not a url"}`,
		`{"game_uid":"g","currency":"usd"}`,
		`{"game_uid":"g","unknown":1}`,
	}

	for i, body := range bodies {
		// distinct users keep the limiter out of the way
		rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, uint64(100+i)), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLaunch_RateLimitedPerUser(t *testing.T) {
	h := newTestRouter(t, &stubGames{})
	body := `{"game_uid":"g-1"}`

	for range 2 {
		rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, 1), body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, 1), body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodPost, "/games/launch", bearer(t, 2), body)
	assert.Equal(t, http.StatusOK, rec.Code, "other users keep their own bucket")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "user_not_found", err: fmt.Errorf("launch game: %w", ledger.ErrUserNotFound), want: http.StatusNotFound},
		{name: "wallet_not_found", err: ledger.ErrWalletNotFound, want: http.StatusNotFound},
		{name: "session_not_found", err: sessionstore.ErrSessionNotFound, want: http.StatusNotFound},
		{name: "insufficient", err: provider.ErrInsufficientFunds, want: http.StatusConflict},
		{name: "no_funds", err: ledger.ErrNoFundsAvailable, want: http.StatusConflict},
		{name: "funded", err: ledger.ErrProviderWalletFunded, want: http.StatusConflict},
		{name: "contention", err: ledger.ErrLockContention, want: http.StatusServiceUnavailable},
		{name: "unavailable", err: provider.ErrProviderUnavailable, want: http.StatusServiceUnavailable},
		{name: "rejected", err: &provider.RejectedError{Code: 5, Msg: "Game closed", Hint: "h"}, want: http.StatusBadGateway},
		{name: "bad_response", err: provider.ErrBadProviderResponse, want: http.StatusBadGateway},
		{name: "other", err: assert.AnError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &stubGames{err: tt.err})

			rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, 1), `{"game_uid":"g"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLaunch_RejectedCarriesHint(t *testing.T) {
	h := newTestRouter(t, &stubGames{err: fmt.Errorf("launch game: %w", &provider.RejectedError{
		Code: 10002, Msg: "Agency does not exist", Hint: "check agency",
	})})

	rec := do(t, h, http.MethodPost, "/games/launch", bearer(t, 1), `{"game_uid":"g"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, float64(10002), body["code"])
	assert.Equal(t, "check agency", body["hint"])
}

func TestWalletEndpoints(t *testing.T) {
	games := &stubGames{}
	h := newTestRouter(t, games)
	auth := bearer(t, 3)

	rec := do(t, h, http.MethodGet, "/wallet/balances", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":3,"primary":"1.50","provider":"0.00","currency":"USD"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/wallet/provider/deposit", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount":"10.00","primary":"0.00","provider":"10.00","currency":"USD"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/wallet/provider/withdraw", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount":"10.00","primary":"10.00","provider":"0.00","currency":"USD"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/wallet/provider/transactions?limit=5&offset=10", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [3]int{3, 5, 10}, games.listArgs)
	assert.JSONEq(t, `{"transactions":[{
		"serial_number":"X1","kind":"bet","amount":"100.00","currency":"USD",
		"balance_before":"500.00","balance_after":"400.00","status":"completed",
		"created_at":"2024-01-01T00:00:00Z"
	}]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/wallet/provider/transactions?limit=abc", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseSession(t *testing.T) {
	h := newTestRouter(t, &stubGames{})
	auth := bearer(t, 1)

	rec := do(t, h, http.MethodPost, "/games/sessions/6f1c2c57-0d7a-4a5e-9d2a-9f4f0c1b2a3d/close", auth, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/games/sessions/nope/close", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = newTestRouter(t, &stubGames{err: sessionstore.ErrSessionNotFound})
	rec = do(t, h, http.MethodPost, "/games/sessions/6f1c2c57-0d7a-4a5e-9d2a-9f4f0c1b2a3d/close", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	games := &stubGames{}
	h := newTestRouter(t, games)
	auth := bearer(t, 1)

	rec := do(t, h, http.MethodGet, "/provider/transactions?from=2024-01-01T00:00:00Z&to=1704153600000&page=2&size=10", auth, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, games.history.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, games.history.To.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, games.history.PageNo)
	assert.Equal(t, 10, games.history.PageSize)
	assert.Equal(t, uint64(1), games.historyFor)

	rec = do(t, h, http.MethodGet, "/provider/transactions?from=yesterday", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = newTestRouter(t, &stubGames{err: provider.ErrInvalidQuery})
	rec = do(t, h, http.MethodGet, "/provider/transactions", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_ScopedToCaller(t *testing.T) {
	games := &stubGames{records: map[uint64][]provider.HistoryRecord{
		1: {{SerialNumber: "A1", MemberAccount: "h5alice"}},
		2: {{SerialNumber: "B1", MemberAccount: "h5bob"}, {SerialNumber: "B2", MemberAccount: "h5bob"}},
	}}
	h := newTestRouter(t, games)

	const path = "/provider/transactions?from=2024-01-01T00:00:00Z&to=2024-01-02T00:00:00Z"

	var page provider.HistoryPage

	rec := do(t, h, http.MethodGet, path, bearer(t, 1), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))

	assert.Equal(t, uint64(1), games.historyFor)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "h5alice", page.Records[0].MemberAccount)
	assert.NotContains(t, rec.Body.String(), "h5bob")

	rec = do(t, h, http.MethodGet, path, bearer(t, 2), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, uint64(2), games.historyFor)
	assert.NotContains(t, rec.Body.String(), "h5alice")

	rec = do(t, h, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
