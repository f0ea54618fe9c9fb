package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/db"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/resilience"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/personal-manager/backend/internal/user/repository"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

const refreshTokensTable = "refresh_tokens"

type RefreshTokenRepository interface {
	Create(ctx context.Context, token authdomain.RefreshToken) error
	FindByTokenHash(ctx context.Context, hash string) (authdomain.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeByTokenHash(ctx context.Context, hash string, at time.Time) (authdomain.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error
}

// RefreshTokenTx is the set of operations that run on the connection of an
// open transaction. Nothing in it acquires a second pool connection.
type RefreshTokenTx interface {
	// RevokeActiveByTokenHash revokes the row only if it is still active and
	// returns ErrRefreshTokenNotFound otherwise.
	RevokeActiveByTokenHash(ctx context.Context, hash string, now time.Time) (authdomain.RefreshToken, error)
	// LockUserSessions serializes session issuance for one user until the
	// transaction ends.
	LockUserSessions(ctx context.Context, userID string) error
	// RevokeExcessByUserID keeps the newest keep active tokens of a user and
	// revokes the rest.
	RevokeExcessByUserID(ctx context.Context, userID string, keep int, now time.Time) (int64, error)
	// FindUser returns userrepo.ErrUserNotFound for a missing user.
	FindUser(ctx context.Context, userID string) (userdomain.User, error)
	Create(ctx context.Context, token authdomain.RefreshToken) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PgRefreshTokenRepository struct {
	db      querier
	breaker *resilience.CircuitBreaker
	txMgr   *RefreshTokenTxManager
}

func NewPgRefreshTokenRepository(pool TxBeginner, breaker *resilience.CircuitBreaker) *PgRefreshTokenRepository {
	return &PgRefreshTokenRepository{
		db:      pool,
		breaker: breaker,
		txMgr:   NewRefreshTokenTxManager(pool, breaker),
	}
}

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked, revoked_at`

func (r *PgRefreshTokenRepository) WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error {
	return r.txMgr.WithTx(ctx, fn)
}

func (r *PgRefreshTokenRepository) Create(ctx context.Context, token authdomain.RefreshToken) error {
	return r.breaker.Call(ctx, func(ctx context.Context) error {
		return insertRefreshToken(ctx, r.db, token)
	})
}

func (r *PgRefreshTokenRepository) FindByTokenHash(ctx context.Context, hash string) (authdomain.RefreshToken, error) {
	var token authdomain.RefreshToken
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := r.db.QueryRow(
			ctx,
			`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`,
			hash,
		)
		return db.HandleQueryError(scanRefreshToken(row, &token), ErrRefreshTokenNotFound, "find refresh token", refreshTokensTable, start)
	})
	if err != nil {
		return authdomain.RefreshToken{}, err
	}
	return token, nil
}

// Revoke is idempotent: revoking an already revoked or unknown id is a no-op.
func (r *PgRefreshTokenRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	return r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := r.db.Exec(
			ctx,
			`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
			 WHERE id = $1 AND revoked = FALSE`,
			id,
			at,
		)
		return db.HandleExecError(err, "revoke refresh token", refreshTokensTable, start)
	})
}

func (r *PgRefreshTokenRepository) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) (authdomain.RefreshToken, error) {
	var token authdomain.RefreshToken
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := r.db.QueryRow(
			ctx,
			`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
			 WHERE token_hash = $1 AND revoked = FALSE
			 RETURNING `+refreshTokenColumns,
			hash,
			at,
		)
		return db.HandleQueryError(scanRefreshToken(row, &token), ErrRefreshTokenNotFound, "revoke refresh token by hash", refreshTokensTable, start)
	})
	if err != nil {
		return authdomain.RefreshToken{}, err
	}
	return token, nil
}

func (r *PgRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	var affected int64
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := r.db.Exec(
			ctx,
			`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
			 WHERE user_id = $1 AND revoked = FALSE`,
			userID,
			at,
		)
		if err := db.HandleExecError(err, "revoke user refresh tokens", refreshTokensTable, start); err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

func (r *PgRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var affected int64
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := r.db.Exec(
			ctx,
			`DELETE FROM refresh_tokens WHERE expires_at < $1`,
			before,
		)
		if err := db.HandleExecError(err, "delete expired refresh tokens", refreshTokensTable, start); err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

type pgRefreshTokenTx struct {
	tx pgx.Tx
}

func (t *pgRefreshTokenTx) RevokeActiveByTokenHash(ctx context.Context, hash string, now time.Time) (authdomain.RefreshToken, error) {
	start := time.Now()
	row := t.tx.QueryRow(
		ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
		 WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
		 RETURNING `+refreshTokenColumns,
		hash,
		now,
	)

	var token authdomain.RefreshToken
	if err := db.HandleQueryError(scanRefreshToken(row, &token), ErrRefreshTokenNotFound, "revoke active refresh token in tx", refreshTokensTable, start); err != nil {
		return authdomain.RefreshToken{}, err
	}
	return token, nil
}

func (t *pgRefreshTokenTx) LockUserSessions(ctx context.Context, userID string) error {
	start := time.Now()
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	return db.HandleExecError(err, "lock user sessions", refreshTokensTable, start)
}

func (t *pgRefreshTokenTx) RevokeExcessByUserID(ctx context.Context, userID string, keep int, now time.Time) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	start := time.Now()
	tag, err := t.tx.Exec(
		ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $3
		 WHERE id IN (
		 	SELECT id
		 	FROM refresh_tokens
		 	WHERE user_id = $1 AND revoked = FALSE AND expires_at > $3
		 	ORDER BY created_at DESC
		 	OFFSET $2
		 )`,
		userID,
		keep,
		now,
	)
	if err := db.HandleExecError(err, "revoke excess refresh tokens", refreshTokensTable, start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgRefreshTokenTx) FindUser(ctx context.Context, userID string) (userdomain.User, error) {
	return userrepo.QueryByID(ctx, t.tx, userdomain.ID(userID))
}

func (t *pgRefreshTokenTx) Create(ctx context.Context, token authdomain.RefreshToken) error {
	return insertRefreshToken(ctx, t.tx, token)
}

func insertRefreshToken(ctx context.Context, q querier, token authdomain.RefreshToken) error {
	start := time.Now()
	_, err := q.Exec(
		ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return db.HandleExecError(err, "create refresh token", refreshTokensTable, start)
}

func scanRefreshToken(row pgx.Row, token *authdomain.RefreshToken) error {
	return row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.Revoked,
		&token.RevokedAt,
	)
}
