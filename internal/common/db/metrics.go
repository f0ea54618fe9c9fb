package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

// StartPoolMetrics publishes pool stats once and then on every tick until
// ctx is done.
func StartPoolMetrics(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DBPoolMetricsInterval
	}

	publishPoolStats(pool.Stat())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				publishPoolStats(pool.Stat())
			}
		}
	}()
}

func publishPoolStats(stats *pgxpool.Stat) {
	metrics.DBPoolConnections.WithLabelValues("acquired").Set(float64(stats.AcquiredConns()))
	metrics.DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	metrics.DBPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns()))
	metrics.DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
	metrics.DBPoolEmptyAcquires.Set(float64(stats.EmptyAcquireCount()))
	metrics.DBPoolAcquireDurationSeconds.Set(stats.AcquireDuration().Seconds())
}
