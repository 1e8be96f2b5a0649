package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/events"
	"github.com/taskhub/task-auth-service/internal/repository"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskRepo) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	args := m.Called(ctx, filter)
	tasks, _ := args.Get(0).([]domain.Task)
	return tasks, args.Error(1)
}

func (m *mockTaskRepo) Count(ctx context.Context, filter repository.TaskFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type mockThrottle struct {
	mock.Mock
}

func (m *mockThrottle) Locked(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockThrottle) RecordFailure(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *mockThrottle) Reset(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(domain.Identity), args.Error(1)
}

// recorder captures every published event.
type recorder struct {
	events.Dispatcher
	got []events.Event
}

func newRecorder() *recorder {
	r := &recorder{Dispatcher: events.NewInMemoryDispatcher()}
	r.SubscribeAll(func(_ context.Context, e events.Event) error {
		r.got = append(r.got, e)
		return nil
	})
	return r
}

func (r *recorder) types() []events.EventType {
	out := make([]events.EventType, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.Type)
	}
	return out
}
