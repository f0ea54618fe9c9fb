package service

import (
	"errors"

	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/resilience"
)

// internalError hides cause behind a generic Internal error. Domain errors
// pass through unchanged.
func internalError(message string, cause error) error {
	if cause == nil {
		return commonerrors.ErrInternal.WithMessage(message)
	}
	if commonerrors.IsDomainError(cause) {
		return cause
	}
	return commonerrors.ErrInternal.WithMessage(message).WithCause(cause)
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen)
}
