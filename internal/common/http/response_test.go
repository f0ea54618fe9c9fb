package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestStatusForKind(t *testing.T) {
	tests := map[commonerrors.Kind]int{
		commonerrors.KindInvalidCredentials:  401,
		commonerrors.KindMalformed:           400,
		commonerrors.KindExpired:             401,
		commonerrors.KindInvalidSignature:    401,
		commonerrors.KindInvalidRefreshToken: 401,
		commonerrors.KindUnauthenticated:     401,
		commonerrors.KindForbidden:           403,
		commonerrors.KindRateLimited:         429,
		commonerrors.KindConflict:            409,
		commonerrors.KindMethodNotAllowed:    405,
		commonerrors.KindInternal:            500,
		commonerrors.Kind("Unknown"):         500,
	}

	for kind, want := range tests {
		assert.Equal(t, want, StatusForKind(kind), "kind %s", kind)
	}
}

func TestWriteError_DomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), constants.TraceIDKey, "trace-1"))

	WriteError(rec, req, commonerrors.NewDomainError(commonerrors.KindExpired, "token expired"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, commonerrors.KindExpired, env.Error.Kind)
	assert.Equal(t, "token expired", env.Error.Message)
	assert.Equal(t, "trace-1", env.Error.TraceID)
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, errors.New("pq: password authentication failed for user admin"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password authentication")
	env := decodeEnvelope(t, rec)
	assert.Equal(t, commonerrors.KindInternal, env.Error.Kind)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "a@b.c", dst.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	err := DecodeJSON(req, &dst)
	assert.Equal(t, commonerrors.KindMalformed, commonerrors.KindOf(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err = DecodeJSON(req, &dst)
	assert.Equal(t, commonerrors.KindMalformed, commonerrors.KindOf(err))
}

func TestRequireMethod(t *testing.T) {
	h := RequireMethod(http.MethodPost)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := WithTimeout(time.Second)(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestMaxRequestSizeMiddleware(t *testing.T) {
	handler := MaxRequestSizeMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := DecodeJSON(r, &v); err != nil {
			WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"this body is too long"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildBaseHandler_RecoversPanics(t *testing.T) {
	handler := BuildBaseHandler("test", logger.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, rec.Header().Get("X-Trace-ID"), env.Error.TraceID)
}

func TestTraceIDMiddleware_KeepsValidInbound(t *testing.T) {
	var seen string
	handler := TraceIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "bad value\n")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 32)
}

func TestHealthHandler(t *testing.T) {
	ok := HealthHandler(logger.NewNop(), map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	down := HealthHandler(logger.NewNop(), map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec = httptest.NewRecorder()
	down(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unavailable"`)
}
