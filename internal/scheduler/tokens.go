package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
)

// TokenStore clears stale account tokens
type TokenStore interface {
	ClearStaleVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanup returns a task that clears verification tokens of accounts
// left unverified for longer than verificationTTL, and expired reset tokens
func TokenCleanup(store TokenStore, verificationTTL, interval time.Duration, logger *logging.Logger) Task {
	return Task{
		Name:     "token_cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			now := time.Now()

			verification, err := store.ClearStaleVerificationTokens(ctx, now.Add(-verificationTTL))
			if err != nil {
				return fmt.Errorf("failed to clear verification tokens: %w", err)
			}
			metrics.RecordTokensCleaned("verification", verification)

			reset, err := store.ClearExpiredResetTokens(ctx, now)
			if err != nil {
				return fmt.Errorf("failed to clear reset tokens: %w", err)
			}
			metrics.RecordTokensCleaned("reset", reset)

			if verification > 0 || reset > 0 {
				logger.WithFields(map[string]interface{}{
					"verification_tokens": verification,
					"reset_tokens":        reset,
				}).Info("Cleared stale account tokens")
			}
			return nil
		},
	}
}
