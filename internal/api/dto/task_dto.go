package dto

import (
	"time"

	"github.com/taskhub/task-auth-service/internal/domain"
)

// TaskRequest payload for creating or replacing a task.
type TaskRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Done bool   `json:"done"`
}

// TaskResponse is the public view of a task.
type TaskResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Done      bool      `json:"done"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTaskResponse maps a domain task.
func NewTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Name:      t.Name,
		Done:      t.Done,
		UserID:    t.UserID,
		Username:  t.Username,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// PageMeta describes the position of a page in a listing.
type PageMeta struct {
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int64 `json:"total_pages"`
}

// PageResponse wraps a page of items.
type PageResponse[T any] struct {
	Data []T      `json:"data"`
	Page PageMeta `json:"page"`
}

// NewPageResponse maps a domain page through conv.
func NewPageResponse[S, T any](p *domain.Page[S], conv func(*S) T) PageResponse[T] {
	data := make([]T, 0, len(p.Items))
	for i := range p.Items {
		data = append(data, conv(&p.Items[i]))
	}
	var pages int64
	if p.Size > 0 {
		pages = (p.Total + int64(p.Size) - 1) / int64(p.Size)
	}
	return PageResponse[T]{
		Data: data,
		Page: PageMeta{Number: p.Number, Size: p.Size, TotalElements: p.Total, TotalPages: pages},
	}
}
