package database

import (
	"context"
	"fmt"
	"time"
)

// ClearStaleVerificationTokens drops verification tokens of accounts that
// were not verified before cutoff
func (r *Repository) ClearStaleVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE users
		SET verification_token = NULL
		WHERE is_verified = FALSE AND verification_token IS NOT NULL AND created_at < $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear verification tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearExpiredResetTokens drops password reset tokens that expired before now
func (r *Repository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET reset_token = NULL, reset_token_expires_at = NULL
		WHERE reset_token IS NOT NULL AND reset_token_expires_at < $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
