package model

import "time"

// VerificationToken is a pending magic link. TokenHash is the derived form of
// the secret mailed to Identifier; the raw token is never stored.
type VerificationToken struct {
	Identifier string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
