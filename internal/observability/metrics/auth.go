package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Total number of auth operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	AuthOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_operation_duration_seconds",
			Help:    "Duration of auth operations in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	PasswordRehashesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "password_rehashes_total",
			Help: "Total number of stored password hashes upgraded to the configured cost",
		},
	)

	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		},
	)

	RefreshTokensRotated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_rotated_total",
			Help: "Total number of refresh tokens successfully rotated",
		},
	)

	RefreshTokensRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_rejected_total",
			Help: "Total number of refresh token presentations rejected as unknown, revoked or expired",
		},
	)

	RefreshTokensRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_tokens_revoked_total",
			Help: "Total number of refresh tokens revoked by reason",
		},
		[]string{"reason"},
	)

	RefreshTokensCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_cleanup_deleted_total",
			Help: "Total number of expired refresh tokens deleted during cleanup",
		},
	)

	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)

	AccessTokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_token_verifications_total",
			Help: "Total number of access token verifications by result",
		},
		[]string{"result"},
	)
)
