package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/providerwallet/internal/infra/pgutils"
	"github.com/fastprodman/providerwallet/internal/repos/sessions"
)

func (r *sessionsRepo) AccountByUser(ctx context.Context, userID uint64) (string, error) {
	var alias string

	err := r.db.QueryRowContext(ctx, `
		SELECT member_account
		FROM provider_accounts
		WHERE user_id = $1
	`, userID).Scan(&alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sessions.ErrAccountNotFound
		}

		return "", fmt.Errorf("account by user: %w", err)
	}

	return alias, nil
}

func (r *sessionsRepo) UserByAccount(ctx context.Context, memberAccount string) (uint64, error) {
	var userID uint64

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM provider_accounts
		WHERE member_account = $1
	`, memberAccount).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sessions.ErrAccountNotFound
		}

		return 0, fmt.Errorf("user by account: %w", err)
	}

	return userID, nil
}

func (r *sessionsRepo) InsertAccount(ctx context.Context, memberAccount string, userID uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_accounts (member_account, user_id)
		VALUES ($1, $2)
	`, memberAccount, userID)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return sessions.ErrAccountTaken
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}
