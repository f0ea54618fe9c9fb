package service

import (
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

// observeOperation is deferred with a pointer to the named error result.
func observeOperation(operation string, start time.Time, errp *error) {
	result := "success"
	if errp != nil && *errp != nil {
		result = "failure"
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
	metrics.AuthOperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func incrementAccessTokensIssued() {
	metrics.AccessTokensIssued.Inc()
}

func incrementVerification(result string) {
	metrics.AccessTokenVerificationsTotal.WithLabelValues(result).Inc()
}

func incrementRefreshTokensIssued() {
	metrics.RefreshTokensIssued.Inc()
}

func incrementRefreshTokensRotated() {
	metrics.RefreshTokensRotated.Inc()
}

func incrementRefreshTokensRejected() {
	metrics.RefreshTokensRejected.Inc()
}

func addRefreshTokensRevoked(reason string, n int64) {
	if n > 0 {
		metrics.RefreshTokensRevoked.WithLabelValues(reason).Add(float64(n))
	}
}

func incrementPasswordRehashes() {
	metrics.PasswordRehashesTotal.Inc()
}
