package domain

import "time"

// Task is a unit of work owned by a user.
type Task struct {
	ID        string
	Name      string
	Done      bool
	UserID    string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items  []T
	Number int
	Size   int
	Total  int64
}
