package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commonhttp "github.com/AlibekovAA/personal-manager/backend/internal/common/http"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidJWTSecret   = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrInvalidValue       = errors.New("invalid configuration value")
)

// AuthConfig is built once at startup and handed to the components by value.
type AuthConfig struct {
	HTTPPort                string
	DatabaseURL             string
	JWTSecret               string
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	BcryptCost              int
	RateLimitCeiling        int
	RateLimitWindow         time.Duration
	MaxRefreshTokensPerUser int
	RequestTimeout          time.Duration
	DBQueryTimeout          time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerReset     time.Duration
	MigrateOnStart          bool
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means rate limits key on the TCP peer.
	TrustedProxies []netip.Prefix
}

func LoadAuthConfig() (AuthConfig, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return AuthConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return AuthConfig{}, err
	}

	trustedProxies, err := commonhttp.ParseTrustedProxies(getEnv("AUTH_TRUSTED_PROXIES", ""))
	if err != nil {
		return AuthConfig{}, fmt.Errorf("%w: AUTH_TRUSTED_PROXIES: %v", ErrInvalidValue, err)
	}

	cfg := AuthConfig{
		HTTPPort:                getEnv("AUTH_HTTP_PORT", constants.DefaultAuthHTTPPort),
		DatabaseURL:             databaseURL,
		JWTSecret:               jwtSecret,
		AccessTokenTTL:          getDurationEnv("AUTH_ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL:         getDurationEnv("AUTH_REFRESH_TOKEN_TTL", constants.DefaultRefreshTokenTTL),
		BcryptCost:              getIntEnv("AUTH_BCRYPT_COST", constants.DefaultBcryptCost),
		RateLimitCeiling:        getIntEnv("AUTH_RATE_LIMIT_CEILING", constants.DefaultRateLimitCeiling),
		RateLimitWindow:         getDurationEnv("AUTH_RATE_LIMIT_WINDOW", constants.DefaultRateLimitWindow),
		MaxRefreshTokensPerUser: getIntEnv("AUTH_MAX_REFRESH_TOKENS_PER_USER", constants.DefaultMaxRefreshTokensPerUser),
		RequestTimeout:          getDurationEnv("AUTH_REQUEST_TIMEOUT", constants.DefaultAuthRequestTimeout),
		DBQueryTimeout:          getDurationEnv("AUTH_DB_QUERY_TIMEOUT", constants.DefaultDBQueryTimeout),
		CircuitBreakerThreshold: getIntEnv("AUTH_CB_THRESHOLD", constants.DefaultCircuitBreakerThreshold),
		CircuitBreakerReset:     getDurationEnv("AUTH_CB_RESET", constants.DefaultCircuitBreakerReset),
		MigrateOnStart:          getBoolEnv("AUTH_MIGRATE_ON_START", false),
		TrustedProxies:          trustedProxies,
	}

	if err := cfg.validate(); err != nil {
		return AuthConfig{}, err
	}

	return cfg, nil
}

func (c AuthConfig) validate() error {
	switch {
	case c.AccessTokenTTL <= 0:
		return fmt.Errorf("%w: AUTH_ACCESS_TOKEN_TTL must be positive", ErrInvalidValue)
	case c.RefreshTokenTTL <= 0:
		return fmt.Errorf("%w: AUTH_REFRESH_TOKEN_TTL must be positive", ErrInvalidValue)
	case c.RateLimitCeiling <= 0:
		return fmt.Errorf("%w: AUTH_RATE_LIMIT_CEILING must be positive", ErrInvalidValue)
	case c.RateLimitWindow <= 0:
		return fmt.Errorf("%w: AUTH_RATE_LIMIT_WINDOW must be positive", ErrInvalidValue)
	case c.MaxRefreshTokensPerUser <= 0:
		return fmt.Errorf("%w: AUTH_MAX_REFRESH_TOKENS_PER_USER must be positive", ErrInvalidValue)
	case c.DBQueryTimeout <= 0:
		return fmt.Errorf("%w: AUTH_DB_QUERY_TIMEOUT must be positive", ErrInvalidValue)
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredEnv, key)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
