package http

import (
	"context"
	"net/http"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

func HealthHandler(log *logger.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}

		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WithFields(r.Context(), logger.Fields{"dependency": name}).Warnf("health check failed: %v", err)
				report[name] = "unavailable"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		WriteJSON(w, status, report)
	}
}
