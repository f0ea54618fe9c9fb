package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
)

type ErrorBody struct {
	Kind    commonerrors.Kind `json:"kind"`
	Message string            `json:"message"`
	TraceID string            `json:"traceId,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the error envelope. Anything that is not a
// DomainError, and any Internal error, is reported without its cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := commonerrors.KindInternal
	message := commonerrors.ErrInternal.Message()
	if de, ok := commonerrors.AsDomainError(err); ok {
		kind = de.Kind()
		message = de.Message()
	}
	WriteErrorEnvelope(w, kind, message, TraceIDFromContext(r.Context()))
}

func WriteErrorEnvelope(w http.ResponseWriter, kind commonerrors.Kind, message, traceID string) {
	WriteJSON(w, StatusForKind(kind), ErrorEnvelope{
		Error: ErrorBody{
			Kind:    kind,
			Message: message,
			TraceID: traceID,
		},
	})
}

// DecodeJSON decodes a single JSON object from the request body.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return commonerrors.ErrRequestTooLarge.WithCause(err)
		case errors.Is(err, io.EOF):
			return commonerrors.ErrInvalidJSON.WithMessage("request body is empty")
		default:
			return commonerrors.ErrInvalidJSON.WithCause(err)
		}
	}
	return nil
}

func RequireMethod(method string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				w.Header().Set("Allow", method)
				WriteError(w, r, commonerrors.ErrMethodNotAllowed)
				return
			}
			next(w, r)
		}
	}
}

func WithTimeout(timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next(w, r.WithContext(ctx))
		}
	}
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(constants.TraceIDKey).(string)
	return traceID
}
