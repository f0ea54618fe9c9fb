package commonerrors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories a caller can observe.
type Kind string

const (
	KindInvalidCredentials  Kind = "InvalidCredentials"
	KindMalformed           Kind = "Malformed"
	KindExpired             Kind = "Expired"
	KindInvalidSignature    Kind = "InvalidSignature"
	KindInvalidRefreshToken Kind = "InvalidRefreshToken"
	KindUnauthenticated     Kind = "Unauthenticated"
	KindForbidden           Kind = "Forbidden"
	KindRateLimited         Kind = "RateLimited"
	KindConflict            Kind = "Conflict"
	KindMethodNotAllowed    Kind = "MethodNotAllowed"
	KindInternal            Kind = "Internal"
)

type DomainError interface {
	error
	Kind() Kind
	Message() string
	Unwrap() error
	WithCause(cause error) DomainError
	WithMessage(message string) DomainError
}

type domainError struct {
	kind    Kind
	message string
	cause   error
}

func (e *domainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *domainError) Kind() Kind {
	return e.kind
}

func (e *domainError) Message() string {
	return e.message
}

func (e *domainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError of the same kind, so sentinels keep working
// after WithCause or WithMessage produced a copy.
func (e *domainError) Is(target error) bool {
	var other DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind() == e.kind
}

func (e *domainError) WithCause(cause error) DomainError {
	return &domainError{
		kind:    e.kind,
		message: e.message,
		cause:   cause,
	}
}

func (e *domainError) WithMessage(message string) DomainError {
	return &domainError{
		kind:    e.kind,
		message: message,
		cause:   e.cause,
	}
}

func NewDomainError(kind Kind, message string) DomainError {
	return &domainError{
		kind:    kind,
		message: message,
	}
}

func IsDomainError(err error) bool {
	var de DomainError
	return errors.As(err, &de)
}

func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf reports the kind carried by err, falling back to KindInternal.
func KindOf(err error) Kind {
	if de, ok := AsDomainError(err); ok {
		return de.Kind()
	}
	return KindInternal
}

var (
	ErrInternal = NewDomainError(KindInternal, "internal server error")

	ErrMethodNotAllowed = NewDomainError(KindMethodNotAllowed, "method not allowed")

	ErrInvalidJSON = NewDomainError(KindMalformed, "invalid json")

	ErrRequestTooLarge = NewDomainError(KindMalformed, "request body too large")

	ErrTooManyRequests = NewDomainError(KindRateLimited, "too many requests")
)
