package model

import "time"

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	EmailVerified *time.Time `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Identity is the authenticated caller as carried by the session claims.
// It is never re-read from the store per request, so Name and Email may lag
// behind the user record until the session is issued again.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IdentityOf derives session claims from a stored user.
func IdentityOf(u *User) Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name}
}
