package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"

	authrepo "github.com/AlibekovAA/personal-manager/backend/internal/auth/repository"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/config"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/db"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/resilience"
	"github.com/AlibekovAA/personal-manager/backend/internal/migrations"
	userrepo "github.com/AlibekovAA/personal-manager/backend/internal/user/repository"
)

// AuthApp holds the process-wide dependencies of the auth service. Nothing
// in it is read through package globals.
type AuthApp struct {
	Log              *logger.Logger
	Config           config.AuthConfig
	Clock            clock.Clock
	Pool             *pgxpool.Pool
	Breaker          *resilience.CircuitBreaker
	UserRepo         userrepo.Repository
	RefreshTokenRepo authrepo.RefreshTokenRepository
}

func NewAuthApp(ctx context.Context) (*AuthApp, error) {
	log, err := initializeLogger("auth")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		_ = log.Close()
		return nil, err
	}

	if cfg.MigrateOnStart {
		if err := migrations.Up(ctx, cfg.DatabaseURL); err != nil {
			log.Errorf("failed to apply migrations: %v", err)
			_ = log.Close()
			return nil, err
		}
		log.Info("database migrations applied")
	}

	pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	db.StartPoolMetrics(ctx, pool, constants.DBPoolMetricsInterval)

	clk := clock.NewRealClock()
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  cfg.CircuitBreakerThreshold,
		Timeout:    cfg.DBQueryTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "auth_db",
		Logger:     log,
		Clock:      clk,
		Expected: []error{
			userrepo.ErrUserNotFound,
			userrepo.ErrEmailAlreadyExists,
			authrepo.ErrRefreshTokenNotFound,
		},
	})

	return &AuthApp{
		Log:              log,
		Config:           cfg,
		Clock:            clk,
		Pool:             pool,
		Breaker:          breaker,
		UserRepo:         userrepo.NewPgRepository(pool, breaker),
		RefreshTokenRepo: authrepo.NewPgRefreshTokenRepository(pool, breaker),
	}, nil
}

func (a *AuthApp) Close() {
	a.Pool.Close()
	_ = a.Log.Close()
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
