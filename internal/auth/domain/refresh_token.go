package domain

import "time"

// RefreshToken is the persisted record of an issued refresh secret. RawToken
// is only populated on the value returned at issue time.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	RawToken  string
}

func (t RefreshToken) ActiveAt(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
