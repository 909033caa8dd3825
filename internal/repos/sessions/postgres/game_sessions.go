package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fastprodman/providerwallet/internal/repos/sessions"
)

func (r *sessionsRepo) Insert(ctx context.Context, tx *sql.Tx, s sessions.Session) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO game_sessions
			(id, user_id, member_account, game_uid, launch_url, credit_amount, currency, is_active, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
	`, s.ID, s.UserID, s.MemberAccount, s.GameUID, s.LaunchURL, s.CreditAmount.Round(2), s.Currency, s.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// CloseActive marks every open session of the user closed and reports how many were.
func (r *sessionsRepo) CloseActive(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE game_sessions
		SET is_active = FALSE, closed_at = now()
		WHERE user_id = $1 AND is_active
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("close active sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

func (r *sessionsRepo) Close(ctx context.Context, userID uint64, sessionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET is_active = FALSE, closed_at = COALESCE(closed_at, now())
		WHERE id = $1 AND user_id = $2
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return sessions.ErrSessionNotFound
	}

	return nil
}

// Active returns the most recently opened active session, or nil.
func (r *sessionsRepo) Active(ctx context.Context, userID uint64) (*sessions.Session, error) {
	var s sessions.Session

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, member_account, game_uid, launch_url, credit_amount,
		       currency, is_active, opened_at, closed_at
		FROM game_sessions
		WHERE user_id = $1 AND is_active
		ORDER BY opened_at DESC
		LIMIT 1
	`, userID).Scan(
		&s.ID, &s.UserID, &s.MemberAccount, &s.GameUID, &s.LaunchURL, &s.CreditAmount,
		&s.Currency, &s.IsActive, &s.OpenedAt, &s.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil
		}

		return nil, fmt.Errorf("active session: %w", err)
	}

	return &s, nil
}
