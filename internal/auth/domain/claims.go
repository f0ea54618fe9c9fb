package domain

import "time"

type AccessToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Claims struct {
	UserID    string
	Roles     []string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Roles: c.Roles}
}

// Identity is what downstream handlers see for an authenticated request.
type Identity struct {
	UserID string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether every required role is present.
func (i Identity) HasAllRoles(required []string) bool {
	for _, role := range required {
		if !i.HasRole(role) {
			return false
		}
	}
	return true
}
