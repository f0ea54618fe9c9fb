package domain

import (
	"strings"
	"time"
)

type ID string

type User struct {
	ID           ID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail is applied before every store and lookup so that the
// unique constraint is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
