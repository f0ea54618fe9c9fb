package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/db"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/resilience"
	"github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

const usersTable = "users"

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, id domain.ID, hash string) error
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PgRepository struct {
	db      Querier
	breaker *resilience.CircuitBreaker
}

func NewPgRepository(q Querier, breaker *resilience.CircuitBreaker) *PgRepository {
	return &PgRepository{db: q, breaker: breaker}
}

const selectUser = `SELECT id, name, email, password_hash, roles, created_at, updated_at FROM users`

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	return r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := r.db.Exec(
			ctx,
			`INSERT INTO users (id, name, email, password_hash, roles, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(user.ID),
			user.Name,
			domain.NormalizeEmail(user.Email),
			user.PasswordHash,
			user.Roles,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if db.IsUniqueViolation(err) {
			db.MeasureQueryDuration("create user", usersTable, start)
			return ErrEmailAlreadyExists
		}
		return db.HandleExecError(err, "create user", usersTable, start)
	})
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := r.db.QueryRow(ctx, selectUser+` WHERE email = $1`, domain.NormalizeEmail(email))
		return db.HandleQueryError(scanUser(row, &user), ErrUserNotFound, "find user by email", usersTable, start)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	var user domain.User
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = QueryByID(ctx, r.db, id)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// QueryByID loads a user through q without the breaker, so callers holding
// an open pgx.Tx can read the user on the same connection.
func QueryByID(ctx context.Context, q Querier, id domain.ID) (domain.User, error) {
	var user domain.User
	start := time.Now()
	row := q.QueryRow(ctx, selectUser+` WHERE id = $1`, string(id))
	if err := db.HandleQueryError(scanUser(row, &user), ErrUserNotFound, "find user by id", usersTable, start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) UpdatePasswordHash(ctx context.Context, id domain.ID, hash string) error {
	return r.breaker.Call(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := r.db.Exec(
			ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			string(id),
			hash,
		)
		if err := db.HandleExecError(err, "update password hash", usersTable, start); err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func scanUser(row pgx.Row, user *domain.User) error {
	var id string
	if err := row.Scan(&id, &user.Name, &user.Email, &user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return err
	}
	user.ID = domain.ID(id)
	return nil
}
