package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/events"
	"github.com/taskhub/task-auth-service/internal/repository"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

// TaskQuery selects a page of tasks. Nil filters match everything.
type TaskQuery struct {
	UserID *string
	Done   *bool
	Page   int
	Size   int
}

// TaskService implements task use cases.
type TaskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewTaskService builds the service.
func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{tasks: tasks, users: users, dispatcher: dispatcher, logger: logger}
}

// CreateTask stores a new task owned by the given username.
func (s *TaskService) CreateTask(ctx context.Context, owner, name string, done bool) (*domain.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	user, err := s.users.FindByUsername(ctx, owner)
	if err != nil {
		return nil, mapUserErr(err, owner)
	}

	task := &domain.Task{Name: name, Done: done, UserID: user.ID, Username: user.Username}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.emit(ctx, events.EventTaskCreated, owner, task)
	return task, nil
}

// GetTask loads one task.
func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, mapTaskErr(err, id)
	}
	return task, nil
}

// UpdateTask replaces the name and status of a task.
func (s *TaskService) UpdateTask(ctx context.Context, actor, id, name string, done bool) (*domain.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Name = name
	task.Done = done
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, mapTaskErr(err, id)
	}
	s.emit(ctx, events.EventTaskUpdated, actor, task)
	return task, nil
}

// MarkDone flags a task as completed.
func (s *TaskService) MarkDone(ctx context.Context, actor, id string) (*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Done = true
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, mapTaskErr(err, id)
	}
	s.emit(ctx, events.EventTaskCompleted, actor, task)
	return task, nil
}

// DeleteTask removes a task.
func (s *TaskService) DeleteTask(ctx context.Context, actor, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return mapTaskErr(err, id)
	}
	publish(ctx, s.dispatcher, s.logger, newEvent(events.EventTaskDeleted, actor, id, nil))
	return nil
}

// ListTasks returns one page of tasks matching q. Filtering and counting run
// in the database.
func (s *TaskService) ListTasks(ctx context.Context, q TaskQuery) (*domain.Page[domain.Task], error) {
	if q.UserID != nil {
		if err := validateID(*q.UserID); err != nil {
			return nil, err
		}
	}
	page, size := normalizePageRequest(q.Page, q.Size)
	filter := repository.TaskFilter{UserID: q.UserID, Done: q.Done, Limit: size, Offset: page * size}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.tasks.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &domain.Page[domain.Task]{Items: tasks, Number: page, Size: size, Total: total}, nil
}

func (s *TaskService) emit(ctx context.Context, t events.EventType, actor string, task *domain.Task) {
	payload := events.TaskPayload{Name: task.Name, Done: task.Done, Owner: task.Username}
	publish(ctx, s.dispatcher, s.logger, newEvent(t, actor, task.ID, payload))
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid id", map[string]any{"id": id})
	}
	return nil
}

func mapTaskErr(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return err
}
