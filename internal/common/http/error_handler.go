package http

import (
	"net/http"
	"strconv"

	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/httpmetrics"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

type ErrorHandler struct {
	log *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()

	domainErr, ok := commonerrors.AsDomainError(err)
	if !ok || domainErr.Kind() == commonerrors.KindInternal {
		h.log.WithFields(ctx, logger.Fields{
			"error":  err.Error(),
			"path":   r.URL.Path,
			"action": "unhandled_error",
		}).Errorf("unhandled error: %v", err)

		h.count(r, commonerrors.KindInternal)
		WriteError(w, r, err)
		return
	}

	if h.log.ShouldLog(logger.DEBUG) {
		h.log.WithFields(ctx, logger.Fields{
			"kind":   string(domainErr.Kind()),
			"status": StatusForKind(domainErr.Kind()),
			"action": "domain_error",
		}).Debugf("domain error: %s", domainErr.Error())
	}

	h.count(r, domainErr.Kind())
	WriteError(w, r, domainErr)
}

func (h *ErrorHandler) count(r *http.Request, kind commonerrors.Kind) {
	status := strconv.Itoa(StatusForKind(kind))

	metrics.DomainErrorsTotal.WithLabelValues(string(kind), status).Inc()
	metrics.HTTPErrorsTotal.WithLabelValues(
		status,
		httpmetrics.NormalizePath(r.URL.Path),
		r.Method,
	).Inc()
}
