package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhub/task-auth-service/internal/api/http/handlers"
	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/config"
	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/events"
	"github.com/taskhub/task-auth-service/internal/observability"
	"github.com/taskhub/task-auth-service/internal/repository"
	"github.com/taskhub/task-auth-service/internal/service"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.NewString()
	m.users[u.Username] = *u
	return nil
}

func (m *memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return pgx.ErrNoRows
	}
	m.users[u.Username] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, username)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (m *memUsers) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if offset >= len(out) {
		return []domain.User{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

func (m *memTasks) Create(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Update(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m *memTasks) matching(f repository.TaskFilter) []domain.Task {
	out := []domain.Task{}
	for _, t := range m.tasks {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Done != nil && t.Done != *f.Done {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memTasks) List(_ context.Context, f repository.TaskFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(f)
	if f.Offset >= len(all) {
		return []domain.Task{}, nil
	}
	return all[f.Offset:min(f.Offset+f.Limit, len(all))], nil
}

func (m *memTasks) Count(_ context.Context, f repository.TaskFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(f))), nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testServer struct {
	app    *fiber.App
	users  *memUsers
	tasks  *memTasks
	tokens *auth.TokenProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	key, err := auth.NewSigningKey("router-test-key")
	require.NoError(t, err)
	tokens, err := auth.NewTokenProvider(key, time.Hour)
	require.NoError(t, err)
	policy, err := auth.NewPolicy(AccessRules()...)
	require.NoError(t, err)

	users := &memUsers{users: map[string]domain.User{}}
	tasks := &memTasks{tasks: map[string]domain.Task{}}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	for name, roles := range map[string][]string{
		"alice": {domain.RoleUser},
		"root":  {domain.RoleUser, domain.RoleAdmin},
	} {
		hash, err := hasher.Hash(name + "-pw")
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, &domain.User{Username: name, PasswordHash: hash, Roles: roles}))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	authService := service.NewAuthService(service.AuthDependencies{
		Verifier:   auth.NewCredentialVerifier(users, hasher),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	app := NewApp("test")
	RegisterMiddlewares(app, logger, metrics, time.Second, config.RateLimitConfig{PerSecond: 1000, Burst: 1000})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", map[string]handlers.Pinger{"postgres": okPinger{}}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(service.NewUserService(users, hasher)),
		Tasks:          handlers.NewTasksHandler(service.NewTaskService(tasks, users, dispatcher, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenProvider(), logger),
		Policy:         policy,
		Metrics:        metrics,
	})
	return &testServer{app: app, users: users, tasks: tasks, tokens: tokens}
}

type response struct {
	status int
	header stdhttp.Header
	body   map[string]any
	raw    string
}

func (s *testServer) do(t *testing.T, method, target, token string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, header: resp.Header, raw: string(raw)}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (r response) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := s.do(t, stdhttp.MethodPost, "/api/token", "", map[string]string{"username": username, "password": password})
	require.Equal(t, stdhttp.StatusOK, resp.status, resp.raw)
	data := resp.body["data"].(map[string]any)
	assert.Equal(t, "Bearer", data["token_type"])
	return data["token"].(string)
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t)

	token := s.login(t, "alice", "alice-pw")
	assert.True(t, s.tokens.Validate(token))

	wrongPassword := s.do(t, stdhttp.MethodPost, "/api/token", "", map[string]string{"username": "alice", "password": "nope"})
	unknownUser := s.do(t, stdhttp.MethodPost, "/api/token", "", map[string]string{"username": "ghost", "password": "nope"})
	assert.Equal(t, stdhttp.StatusUnauthorized, wrongPassword.status)
	assert.Equal(t, "INVALID_CREDENTIALS", wrongPassword.errorCode())
	assert.Equal(t, wrongPassword.status, unknownUser.status)
	assert.Equal(t, wrongPassword.body, unknownUser.body, "responses must not reveal whether the user exists")

	missing := s.do(t, stdhttp.MethodPost, "/api/token", "", map[string]string{"username": "alice"})
	assert.Equal(t, stdhttp.StatusBadRequest, missing.status)
	assert.Equal(t, "VALIDATION_FAILED", missing.errorCode())
}

func TestAnonymousAccess(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, stdhttp.MethodGet, "/api/tasks/all_tasks", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.status)
	assert.Equal(t, "UNAUTHENTICATED", resp.errorCode())
	assert.Equal(t, `Bearer realm="api"`, resp.header.Get(fiber.HeaderWWWAuthenticate))

	resp = s.do(t, stdhttp.MethodGet, "/api/tasks/all_tasks", "not.a.token", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.status)

	resp = s.do(t, stdhttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, stdhttp.StatusOK, resp.status)
	resp = s.do(t, stdhttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, stdhttp.StatusOK, resp.status)
}

func TestRoleEnforcement(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice", "alice-pw")
	root := s.login(t, "root", "root-pw")
	missingID := uuid.NewString()

	resp := s.do(t, stdhttp.MethodDelete, "/api/tasks/admin/delete/"+missingID, alice, nil)
	assert.Equal(t, stdhttp.StatusForbidden, resp.status)
	assert.Equal(t, "FORBIDDEN", resp.errorCode())

	resp = s.do(t, stdhttp.MethodDelete, "/API/Tasks/Admin/delete/"+missingID, alice, nil)
	assert.Equal(t, stdhttp.StatusForbidden, resp.status, "case variants must not slip past the policy")

	resp = s.do(t, stdhttp.MethodDelete, "/api/tasks/admin/delete/"+missingID, root, nil)
	assert.Equal(t, stdhttp.StatusNotFound, resp.status)

	resp = s.do(t, stdhttp.MethodGet, "/api/users", alice, nil)
	assert.Equal(t, stdhttp.StatusForbidden, resp.status)
	resp = s.do(t, stdhttp.MethodGet, "/api/users", root, nil)
	assert.Equal(t, stdhttp.StatusOK, resp.status)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice", "alice-pw")
	root := s.login(t, "root", "root-pw")

	created := s.do(t, stdhttp.MethodPost, "/api/tasks/new", alice, map[string]any{"name": "buy milk"})
	require.Equal(t, stdhttp.StatusCreated, created.status, created.raw)
	task := created.body["data"].(map[string]any)
	id := task["id"].(string)

	resp := s.do(t, stdhttp.MethodGet, "/api/tasks/"+id, alice, nil)
	assert.Equal(t, stdhttp.StatusOK, resp.status)

	resp = s.do(t, stdhttp.MethodGet, "/api/tasks/undone", alice, nil)
	require.Equal(t, stdhttp.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)

	resp = s.do(t, stdhttp.MethodPut, "/api/tasks/admin/"+id, root, nil)
	require.Equal(t, stdhttp.StatusOK, resp.status, resp.raw)

	resp = s.do(t, stdhttp.MethodGet, "/api/tasks/done", alice, nil)
	require.Equal(t, stdhttp.StatusOK, resp.status)
	assert.Len(t, resp.body["data"], 1)

	resp = s.do(t, stdhttp.MethodDelete, "/api/tasks/admin/delete/"+id, root, nil)
	assert.Equal(t, stdhttp.StatusNoContent, resp.status)

	resp = s.do(t, stdhttp.MethodGet, "/api/tasks/"+id, alice, nil)
	assert.Equal(t, stdhttp.StatusNotFound, resp.status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, stdhttp.MethodGet, "/api/tasks/all_tasks", "", nil)

	resp := s.do(t, stdhttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, stdhttp.StatusOK, resp.status)
	assert.Contains(t, resp.raw, `auth_decisions_total{outcome="unauthenticated"} 1`)
}
