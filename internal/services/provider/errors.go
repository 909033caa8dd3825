package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrInvalidAgency       = errors.New("invalid agency")
	ErrExpiredTimestamp    = errors.New("timestamp outside tolerance")
	ErrMalformedEnvelope   = errors.New("malformed envelope")
	ErrInvalidMessage      = errors.New("invalid callback message")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrBadProviderResponse = errors.New("unexpected provider response")
	ErrInvalidQuery        = errors.New("invalid history query")
)

// RejectedError carries a nonzero provider result code.
type RejectedError struct {
	Code int
	Msg  string
	Hint string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request (code %d): %s", e.Code, e.Msg)
}

func (e *RejectedError) Unwrap() error {
	return ErrProviderRejected
}

var rejectionHints = []struct {
	keyword string
	hint    string
}{
	{keyword: "agency", hint: "agency not recognized: check PROVIDER_AGENCY_UID with the provider"},
	{keyword: "decrypt", hint: "provider could not decrypt the request: check PROVIDER_AES_KEY"},
	{keyword: "timestamp", hint: "request timestamp rejected: check the server clock"},
	{keyword: "game", hint: "game unavailable: pick another game or retry later"},
	{keyword: "balance", hint: "insufficient balance at the provider: top up the game wallet"},
	{keyword: "currency", hint: "currency not enabled for this agency"},
	{keyword: "member", hint: "member account rejected: contact support"},
}

const defaultHint = "provider refused the launch: retry later or contact support"

func newRejectedError(code int, msg string) *RejectedError {
	lower := strings.ToLower(msg)

	hint := defaultHint

	for _, h := range rejectionHints {
		if strings.Contains(lower, h.keyword) {
			hint = h.hint
			break
		}
	}

	return &RejectedError{Code: code, Msg: msg, Hint: hint}
}
