package ledger

import (
	"errors"

	"github.com/fastprodman/providerwallet/internal/repos/users"
	"github.com/fastprodman/providerwallet/internal/repos/wallets"
)

var (
	ErrUserNotFound   = users.ErrUserNotFound
	ErrWalletNotFound = wallets.ErrWalletNotFound

	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNoFundsAvailable     = errors.New("no funds available to transfer")
	ErrProviderWalletFunded = errors.New("provider wallet already funded")
	ErrLockContention       = errors.New("wallet is busy, lock retries exhausted")
)
