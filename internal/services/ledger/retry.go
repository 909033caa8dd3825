package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
)

type attemptResult int

const (
	attemptOK attemptResult = iota
	attemptRetry
	attemptFail
)

func classify(err error) attemptResult {
	switch {
	case err == nil:
		return attemptOK
	case pgutils.IsLockContention(err):
		return attemptRetry
	default:
		return attemptFail
	}
}

// mutate runs fn in a transaction with a bounded lock wait. Lock timeouts and
// deadlocks restart fn in a fresh transaction after a random backoff.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error

	for attempt := 1; ; attempt++ {
		err = pgutils.WithTx(ctx, l.db, func(tx *sql.Tx) error {
			lerr := pgutils.SetLockTimeout(ctx, tx, l.cfg.LockTimeout)
			if lerr != nil {
				return lerr
			}

			return fn(tx)
		})

		switch classify(err) {
		case attemptOK:
			return nil
		case attemptFail:
			return fmt.Errorf("%s: %w", op, err)
		case attemptRetry:
		}

		if attempt >= l.cfg.MaxAttempts {
			break
		}

		l.metrics.LedgerLockRetries.Inc()

		wait := l.backoff()
		slog.Warn("wallet lock contention, retrying",
			"op", op, "attempt", attempt, "backoff", wait, "error", err)

		serr := l.sleep(ctx, wait)
		if serr != nil {
			return fmt.Errorf("%s: backoff: %w", op, serr)
		}
	}

	l.metrics.LedgerLockContention.Inc()
	slog.Error("wallet lock retries exhausted", "op", op, "attempts", l.cfg.MaxAttempts, "error", err)

	return fmt.Errorf("%s after %d attempts: %w (last error: %v)", op, l.cfg.MaxAttempts, ErrLockContention, err)
}

func (l *Ledger) backoff() time.Duration {
	span := l.cfg.BackoffMax - l.cfg.BackoffMin
	if span <= 0 {
		return l.cfg.BackoffMin
	}

	return l.cfg.BackoffMin + l.jitter(span+1)
}

func randDuration(n time.Duration) time.Duration {
	return rand.N(n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
