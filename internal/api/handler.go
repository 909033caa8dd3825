package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastprodman/providerwallet/internal/codec"
	"github.com/fastprodman/providerwallet/internal/repos/transactions"
	"github.com/fastprodman/providerwallet/internal/services/ledger"
	"github.com/fastprodman/providerwallet/internal/services/provider"
	"github.com/fastprodman/providerwallet/internal/services/sessionstore"
)

const maxBodyBytes = 1 << 20

// Games is the slice of the provider adapter the HTTP surface needs.
type Games interface {
	LaunchGame(ctx context.Context, userID uint64, opts provider.LaunchOptions) (provider.LaunchResult, error)
	HandleCallback(ctx context.Context, env codec.Envelope) provider.CallbackResponse
	Balances(ctx context.Context, userID uint64) (provider.Balances, error)
	DepositToGame(ctx context.Context, userID uint64) (ledger.TransferResult, error)
	WithdrawFromGame(ctx context.Context, userID uint64) (ledger.TransferResult, error)
	CloseSession(ctx context.Context, userID uint64, sessionID uuid.UUID) error
	ListTransactions(ctx context.Context, userID uint64, limit, offset int) ([]transactions.Transaction, error)
	TransactionHistoryFor(ctx context.Context, userID uint64, q provider.HistoryQuery) (provider.HistoryPage, error)
}

var _ Games = (*provider.Adapter)(nil)

type HandlerProvider struct {
	games    Games
	validate *validator.Validate
}

func NewHandler(games Games) *HandlerProvider {
	return &HandlerProvider{games: games, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var rejected *provider.RejectedError

	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": "provider rejected request",
			"code":  rejected.Code,
			"msg":   rejected.Msg,
			"hint":  rejected.Hint,
		})
	case errors.Is(err, ledger.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ledger.ErrWalletNotFound):
		writeError(w, http.StatusNotFound, "provider wallet not found")
	case errors.Is(err, sessionstore.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, provider.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, ledger.ErrNoFundsAvailable):
		writeError(w, http.StatusConflict, "no funds available")
	case errors.Is(err, ledger.ErrProviderWalletFunded):
		writeError(w, http.StatusConflict, "provider wallet already funded")
	case errors.Is(err, ledger.ErrLockContention):
		writeError(w, http.StatusServiceUnavailable, "wallet busy, retry")
	case errors.Is(err, provider.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "game provider unavailable")
	case errors.Is(err, provider.ErrBadProviderResponse):
		writeError(w, http.StatusBadGateway, "unexpected game provider response")
	case errors.Is(err, provider.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	//nolint:errcheck
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	return dec.Decode(dst)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	return strconv.Atoi(raw)
}

// queryTime accepts RFC 3339 or epoch milliseconds.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Parse(time.RFC3339, raw)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// --- Handlers ---

// CallbackHandler handles POST /provider/callback. It always answers 200;
// the outcome is carried in the response code.
func (h *HandlerProvider) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	//nolint:errcheck
	defer r.Body.Close()

	var env codec.Envelope

	err := json.NewDecoder(r.Body).Decode(&env)
	if err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("undecodable provider callback body", "error", err)

		env = codec.Envelope{}
	}

	writeJSON(w, http.StatusOK, h.games.HandleCallback(r.Context(), env))
}

type launchRequest struct {
	GameUID  string `json:"game_uid" validate:"required,max=64"`
	Language string `json:"language" validate:"omitempty,max=8"`
	Platform int    `json:"platform" validate:"omitempty,oneof=1 2"`
	HomeURL  string `json:"home_url" validate:"omitempty,url"`
	Currency string `json:"currency" validate:"omitempty,len=3,uppercase"`
}

type launchResponse struct {
	URL           string `json:"url"`
	SessionID     string `json:"session_id"`
	MemberAccount string `json:"member_account"`
	CreditAmount  string `json:"credit_amount"`
	Currency      string `json:"currency"`
}

// LaunchHandler handles POST /games/launch
func (h *HandlerProvider) LaunchHandler(w http.ResponseWriter, r *http.Request) {
	var req launchRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err = h.validate.Struct(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.games.LaunchGame(r.Context(), userIDFrom(r.Context()), provider.LaunchOptions{
		GameUID:  req.GameUID,
		Language: req.Language,
		Platform: req.Platform,
		HomeURL:  req.HomeURL,
		Currency: req.Currency,
	})
	if err != nil {
		writeServiceError(w, "launch", err)
		return
	}

	writeJSON(w, http.StatusOK, launchResponse{
		URL:           res.URL,
		SessionID:     res.SessionID.String(),
		MemberAccount: res.MemberAccount,
		CreditAmount:  money(res.CreditAmount),
		Currency:      res.Currency,
	})
}

// CloseSessionHandler handles POST /games/sessions/{sessionId}/close
func (h *HandlerProvider) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sessionId in path")
		return
	}

	err = h.games.CloseSession(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, "close session", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// BalancesHandler handles GET /wallet/balances
func (h *HandlerProvider) BalancesHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	bal, err := h.games.Balances(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "balances", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"primary":  money(bal.Primary),
		"provider": money(bal.Provider),
		"currency": bal.Currency,
	})
}

type transferResponse struct {
	Amount   string `json:"amount"`
	Primary  string `json:"primary"`
	Provider string `json:"provider"`
	Currency string `json:"currency"`
}

func toTransferResponse(res ledger.TransferResult) transferResponse {
	return transferResponse{
		Amount:   money(res.Amount),
		Primary:  money(res.Primary),
		Provider: money(res.Provider),
		Currency: res.Currency,
	}
}

// DepositHandler handles POST /wallet/provider/deposit
func (h *HandlerProvider) DepositHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.games.DepositToGame(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferResponse(res))
}

// WithdrawHandler handles POST /wallet/provider/withdraw
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.games.WithdrawFromGame(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferResponse(res))
}

type transactionView struct {
	SerialNumber  string  `json:"serial_number"`
	SessionID     *string `json:"session_id,omitempty"`
	Kind          string  `json:"kind"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	BalanceBefore string  `json:"balance_before"`
	BalanceAfter  string  `json:"balance_after"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

// LocalTransactionsHandler handles GET /wallet/provider/transactions
func (h *HandlerProvider) LocalTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	rows, err := h.games.ListTransactions(r.Context(), userIDFrom(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, "list transactions", err)
		return
	}

	out := make([]transactionView, 0, len(rows))

	for _, t := range rows {
		v := transactionView{
			SerialNumber:  t.SerialNumber,
			Kind:          string(t.Kind),
			Amount:        money(t.Amount),
			Currency:      t.Currency,
			BalanceBefore: money(t.BalanceBefore),
			BalanceAfter:  money(t.BalanceAfter),
			Status:        string(t.Status),
			CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
		}

		if t.SessionID.Valid {
			s := t.SessionID.UUID.String()
			v.SessionID = &s
		}

		out = append(out, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// HistoryHandler handles GET /provider/transactions. Only the caller's own
// provider records are returned.
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	var (
		q   provider.HistoryQuery
		err error
	)

	q.From, err = queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}

	q.To, err = queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	q.PageNo, err = queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}

	q.PageSize, err = queryInt(r, "size", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid size")
		return
	}

	page, err := h.games.TransactionHistoryFor(r.Context(), userIDFrom(r.Context()), q)
	if err != nil {
		writeServiceError(w, "history", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}
