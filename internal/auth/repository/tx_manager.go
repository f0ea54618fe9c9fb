package repository

import (
	"context"
	"errors"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/resilience"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type RefreshTokenTxManager struct {
	pool    TxBeginner
	breaker *resilience.CircuitBreaker
}

func NewRefreshTokenTxManager(pool TxBeginner, breaker *resilience.CircuitBreaker) *RefreshTokenTxManager {
	return &RefreshTokenTxManager{pool: pool, breaker: breaker}
}

// WithTx commits when fn returns nil and rolls back otherwise. The whole
// transaction shares the breaker's call timeout.
func (m *RefreshTokenTxManager) WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error {
	return m.breaker.Call(ctx, func(ctx context.Context) (err error) {
		tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return err
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback(ctx)
				metrics.DBTransactionsTotal.WithLabelValues(refreshTokensTable, "panic").Inc()
				panic(p)
			}
			if err != nil {
				if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
					err = errors.Join(err, rbErr)
				}
				metrics.DBTransactionsTotal.WithLabelValues(refreshTokensTable, "rollback").Inc()
				return
			}
			err = tx.Commit(ctx)
			if err != nil {
				metrics.DBTransactionsTotal.WithLabelValues(refreshTokensTable, "commit_failed").Inc()
				return
			}
			metrics.DBTransactionsTotal.WithLabelValues(refreshTokensTable, "commit").Inc()
		}()

		return fn(ctx, &pgRefreshTokenTx{tx: tx})
	})
}
