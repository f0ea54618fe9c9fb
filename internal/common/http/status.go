package http

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
)

var kindStatus = map[commonerrors.Kind]int{
	commonerrors.KindInvalidCredentials:  http.StatusUnauthorized,
	commonerrors.KindMalformed:           http.StatusBadRequest,
	commonerrors.KindExpired:             http.StatusUnauthorized,
	commonerrors.KindInvalidSignature:    http.StatusUnauthorized,
	commonerrors.KindInvalidRefreshToken: http.StatusUnauthorized,
	commonerrors.KindUnauthenticated:     http.StatusUnauthorized,
	commonerrors.KindForbidden:           http.StatusForbidden,
	commonerrors.KindRateLimited:         http.StatusTooManyRequests,
	commonerrors.KindConflict:            http.StatusConflict,
	commonerrors.KindMethodNotAllowed:    http.StatusMethodNotAllowed,
	commonerrors.KindInternal:            http.StatusInternalServerError,
}

// StatusForKind is the only mapping from error kind to HTTP status.
func StatusForKind(kind commonerrors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
