package domain

import "time"

// User is a stored account able to log in and own tasks.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the token identity for the user.
func (u *User) Identity() Identity {
	return Identity{Subject: u.Username, Roles: NormalizeRoles(u.Roles)}
}
