package http

import (
	"net/http"
	"runtime/debug"

	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
)

func RecoveryMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.WithFields(r.Context(), logger.Fields{"path": r.URL.Path}).
						Errorf("panic recovered: %v\n%s", rec, debug.Stack())
					WriteError(w, r, commonerrors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
