// Package codec implements the symmetric payload encryption and replay-window
// checks required by the game provider's wire protocol.
//
// The key schedule (raw secret bytes, zero-padded or truncated to 32 bytes) and
// the ECB mode without IV are fixed by the provider's reference client. Both
// sides must agree bit for bit, so do not reuse this codec for anything else.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const keySize = 32

// ErrDecode is returned for malformed base64, ciphertext or padding.
var ErrDecode = errors.New("decode payload")

// Envelope is the outer structure of every message exchanged with the provider.
type Envelope struct {
	AgencyUID string    `json:"agency_uid"`
	Timestamp Timestamp `json:"timestamp"`
	Payload   string    `json:"payload"`
}

// Timestamp accepts both JSON strings and bare numbers; the provider is not
// consistent about which one it sends.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string

		err := json.Unmarshal(b, &s)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}

		*t = Timestamp(s)

		return nil
	}

	if string(b) == "null" {
		*t = ""
		return nil
	}

	*t = Timestamp(b)

	return nil
}

type Codec struct {
	block cipher.Block
	now   func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// New builds a Codec from the shared secret.
func New(secret string, opts ...Option) (*Codec, error) {
	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	c := &Codec{block: block, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// DeriveKey returns the secret's UTF-8 bytes zero-padded or truncated to 32 bytes.
func DeriveKey(secret string) []byte {
	key := make([]byte, keySize)
	copy(key, secret)

	return key
}

func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	padded := pkcs7Pad(plaintext, c.block.BlockSize())

	out := make([]byte, len(padded))
	encryptECB(c.block, out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Codec) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}

	bs := c.block.BlockSize()
	if len(raw) == 0 || len(raw)%bs != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrDecode, len(raw))
	}

	out := make([]byte, len(raw))
	decryptECB(c.block, out, raw)

	plain, err := pkcs7Unpad(out, bs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return plain, nil
}

// GenerateTimestamp returns the current time in milliseconds since epoch.
func (c *Codec) GenerateTimestamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// ValidateTimestamp reports whether ts lies within [now-maxAge, now].
// Timestamps from the future are rejected rather than clamped.
func (c *Codec) ValidateTimestamp(ts string, maxAge time.Duration) bool {
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}

	age := c.now().UnixMilli() - ms

	return age >= 0 && age <= maxAge.Milliseconds()
}

// EncryptPayload serialises v to JSON, encrypts it and wraps it in an Envelope.
func (c *Codec) EncryptPayload(v any, agencyUID, ts string) (Envelope, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	enc, err := c.Encrypt(plain)
	if err != nil {
		return Envelope{}, fmt.Errorf("encrypt payload: %w", err)
	}

	return Envelope{AgencyUID: agencyUID, Timestamp: Timestamp(ts), Payload: enc}, nil
}

// DecryptPayload decrypts ciphertext and unmarshals the JSON into v.
func (c *Codec) DecryptPayload(ciphertext string, v any) error {
	plain, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}

	err = json.Unmarshal(plain, v)
	if err != nil {
		return fmt.Errorf("%w: json: %v", ErrDecode, err)
	}

	return nil
}
