package service

import (
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
)

var (
	ErrInvalidCredentials = commonerrors.NewDomainError(
		commonerrors.KindInvalidCredentials,
		"invalid email or password",
	)

	ErrEmailTaken = commonerrors.NewDomainError(
		commonerrors.KindConflict,
		"user with this email already exists",
	)

	ErrInvalidRefreshToken = commonerrors.NewDomainError(
		commonerrors.KindInvalidRefreshToken,
		"invalid refresh token",
	)

	ErrTokenMalformed = commonerrors.NewDomainError(
		commonerrors.KindMalformed,
		"malformed token",
	)

	ErrTokenExpired = commonerrors.NewDomainError(
		commonerrors.KindExpired,
		"token expired",
	)

	ErrTokenInvalidSignature = commonerrors.NewDomainError(
		commonerrors.KindInvalidSignature,
		"invalid token signature",
	)

	ErrUserNotFound = commonerrors.NewDomainError(
		commonerrors.KindUnauthenticated,
		"user no longer exists",
	)

	ErrValidationName = commonerrors.NewDomainError(
		commonerrors.KindMalformed,
		"name must be between 1 and 100 characters",
	)

	ErrValidationEmail = commonerrors.NewDomainError(
		commonerrors.KindMalformed,
		"email must be a valid email address",
	)

	ErrValidationPasswordLength = commonerrors.NewDomainError(
		commonerrors.KindMalformed,
		"password must be between 8 and 72 bytes",
	)
)
