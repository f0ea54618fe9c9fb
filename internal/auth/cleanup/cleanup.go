package cleanup

import (
	"context"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RunOnce deletes refresh tokens whose expiry has passed. Revoked rows stay
// until then so a replayed secret is still recognised as revoked.
func RunOnce(ctx context.Context, repo ExpiredDeleter, clk clock.Clock, log *logger.Logger) (int64, error) {
	deleted, err := repo.DeleteExpired(ctx, clk.Now())
	if err != nil {
		log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_cleanup_failed",
		}).Errorf("refresh token cleanup failed: %v", err)
		return 0, err
	}
	if deleted > 0 {
		metrics.RefreshTokensCleanupDeleted.Add(float64(deleted))
		log.Infof("refresh token cleanup: deleted %d expired tokens", deleted)
	}
	return deleted, nil
}

func StartRefreshTokenCleanup(ctx context.Context, repo ExpiredDeleter, interval time.Duration, clk clock.Clock, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = RunOnce(ctx, repo, clk, log)
		}
	}
}
