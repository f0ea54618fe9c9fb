package constants

import "time"

const (
	NameMaxLength      = 100
	EmailMaxLength     = 254
	PasswordMinLength  = 8
	PasswordMaxLength  = 72
	JWTSecretMinLength = 32
	RefreshTokenSize   = 32

	DefaultMaxRequestSize = 1 << 20
	DefaultUserName       = "User"
	DefaultUserRole       = "user"

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second
	ServerMaxHeaderBytes    = 16 << 10
	ServerWriteTimeoutSlack = 5 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	RefreshTokenCleanupInterval = 1 * time.Hour

	RateLimitShards          = 64
	RateLimitCleanupInterval = 1 * time.Minute

	CredentialThrottleRequestsPerSecond = 1.0
	CredentialThrottleBurst             = 10
	CredentialThrottleIdleTTL           = 10 * time.Minute

	DefaultAuthHTTPPort = "8081"

	DefaultAccessTokenTTL          = 1 * time.Hour
	DefaultRefreshTokenTTL         = 7 * 24 * time.Hour
	DefaultBcryptCost              = 12
	DefaultRateLimitCeiling        = 100
	DefaultRateLimitWindow         = 60 * time.Second
	DefaultMaxRefreshTokensPerUser = 5
	DefaultAuthRequestTimeout      = 5 * time.Second
	DefaultDBQueryTimeout          = 3 * time.Second

	DefaultCircuitBreakerThreshold = 50
	DefaultCircuitBreakerReset     = 10 * time.Second

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
