package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated   EventType = "task_created"
	EventTaskUpdated   EventType = "task_updated"
	EventTaskCompleted EventType = "task_completed"
	EventTaskDeleted   EventType = "task_deleted"
	EventUserLoggedIn  EventType = "user_logged_in"
	EventLoginFailed   EventType = "login_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TaskPayload describes the task state carried by task events.
type TaskPayload struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Owner string `json:"owner"`
}
