package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcleanup "github.com/AlibekovAA/personal-manager/backend/internal/auth/cleanup"
	"github.com/AlibekovAA/personal-manager/backend/internal/auth/gate"
	authhttp "github.com/AlibekovAA/personal-manager/backend/internal/auth/http"
	"github.com/AlibekovAA/personal-manager/backend/internal/auth/service"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/bootstrap"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/personal-manager/backend/internal/common/crypto"
	commonhttp "github.com/AlibekovAA/personal-manager/backend/internal/common/http"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/ratelimit"
	srv "github.com/AlibekovAA/personal-manager/backend/internal/common/server"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAuthApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	log := app.Log
	cfg := app.Config

	hasher := commoncrypto.NewBcryptHasher(cfg.BcryptCost)
	idGenerator := commoncrypto.NewUUIDGenerator()

	credentials, err := service.NewCredentialStore(app.UserRepo, hasher, idGenerator, app.Clock, log)
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	tokens := service.NewTokenIssuer(cfg.JWTSecret, idGenerator, cfg.AccessTokenTTL, app.Clock)
	rotator := service.NewRefreshTokenRotator(
		app.RefreshTokenRepo,
		idGenerator,
		cfg.RefreshTokenTTL,
		cfg.MaxRefreshTokensPerUser,
		app.Clock,
		log,
	)
	authService := service.NewAuthService(credentials, tokens, rotator, log)

	limiter := ratelimit.New(ratelimit.Config{
		Ceiling: cfg.RateLimitCeiling,
		Window:  cfg.RateLimitWindow,
	}, app.Clock)
	clientIP := commonhttp.NewClientIPResolver(cfg.TrustedProxies)
	throttle := commonhttp.NewCredentialThrottle(
		constants.CredentialThrottleRequestsPerSecond,
		constants.CredentialThrottleBurst,
		clientIP,
	)

	workers, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go limiter.Run(workers, constants.RateLimitCleanupInterval, func(_, live int) {
		metrics.RateLimitBuckets.Set(float64(live))
	})
	go throttle.Run(workers, constants.RateLimitCleanupInterval)
	go authcleanup.StartRefreshTokenCleanup(workers, app.RefreshTokenRepo, constants.RefreshTokenCleanupInterval, app.Clock, log)

	handler := authhttp.NewHandler(authService, gate.New(limiter, tokens, clientIP, log), authhttp.Options{
		RequestTimeout: cfg.RequestTimeout,
		Throttle:       throttle,
		HealthChecks: map[string]commonhttp.HealthCheck{
			"database": func(ctx context.Context) error { return app.Pool.Ping(ctx) },
		},
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort).WithRequestTimeout(cfg.RequestTimeout)
	server := srv.NewServer(serverConfig, commonhttp.BuildBaseHandler("auth", log, mux))

	shutdownHooks := []srv.ShutdownHook{
		func(context.Context) error {
			log.Info("auth service: stopping background workers")
			cancelWorkers()
			return nil
		},
	}

	return srv.Run(ctx, server, log, "auth", shutdownHooks)
}
