package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
)

func validateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > constants.NameMaxLength {
		return ErrValidationName
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || len(email) > constants.EmailMaxLength {
		return ErrValidationEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrValidationEmail
	}
	return nil
}

// validatePassword bounds the length in bytes; bcrypt ignores input past 72.
func validatePassword(password string) error {
	if len(password) < constants.PasswordMinLength || len(password) > constants.PasswordMaxLength {
		return ErrValidationPasswordLength
	}
	return nil
}
