package auth

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/task-auth-service/internal/domain"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Validate(token string) bool {
	return m.Called(token).Bool(0)
}

func (m *mockVerifier) ExtractClaims(token string) (domain.Identity, error) {
	args := m.Called(token)
	return args.Get(0).(domain.Identity), args.Error(1)
}

func newGatedApp(t *testing.T, tokens TokenVerifier) *fiber.App {
	t.Helper()
	policy, err := NewPolicy(testRules()...)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Use(NewAuthMiddleware(tokens, nil).Handle)
	app.Use(policy.Enforce())

	whoami := func(c *fiber.Ctx) error {
		id, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		ctxID, ok := IdentityFromContext(c.UserContext())
		if !ok || ctxID.Subject != id.Subject {
			return fiber.ErrInternalServerError
		}
		return c.SendString(id.Subject)
	}
	app.Post("/api/token", whoami)
	app.Get("/health/live", whoami)
	app.Get("/api/tasks/all_tasks", whoami)
	app.Delete("/api/tasks/admin/delete/:id", whoami)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, authorization string) (int, string, http.Header) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestGateAnonymousPublicRoute(t *testing.T) {
	app := newGatedApp(t, newTestProvider(t, time.Hour))

	status, body, _ := doRequest(t, app, http.MethodPost, "/api/token", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	status, _, _ = doRequest(t, app, http.MethodGet, "/health/live", "Bearer garbage")
	assert.Equal(t, http.StatusOK, status, "a bad token must not block a public route")
}

func TestGateAnonymousProtectedRoute(t *testing.T) {
	app := newGatedApp(t, newTestProvider(t, time.Hour))

	status, body, header := doRequest(t, app, http.MethodGet, "/api/tasks/all_tasks", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "UNAUTHENTICATED")
	assert.Equal(t, `Bearer realm="api"`, header.Get(fiber.HeaderWWWAuthenticate))
}

func TestGateValidToken(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	app := newGatedApp(t, p)
	tok, err := p.Issue("alice", []string{domain.RoleUser}, time.Now())
	require.NoError(t, err)

	status, body, _ := doRequest(t, app, http.MethodGet, "/api/tasks/all_tasks", "Bearer "+tok.Value)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body)

	status, body, _ = doRequest(t, app, http.MethodDelete, "/api/tasks/admin/delete/1", "Bearer "+tok.Value)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "FORBIDDEN")
}

func TestGateAdminToken(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	app := newGatedApp(t, p)
	tok, err := p.Issue("root", []string{domain.RoleUser, domain.RoleAdmin}, time.Now())
	require.NoError(t, err)

	status, body, _ := doRequest(t, app, http.MethodDelete, "/api/tasks/admin/delete/1", "Bearer "+tok.Value)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "root", body)
}

func TestGateRejectedTokensFallBackToAnonymous(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	app := newGatedApp(t, p)
	valid, err := p.Issue("alice", []string{domain.RoleUser}, time.Now())
	require.NoError(t, err)
	expired, err := p.Issue("alice", []string{domain.RoleUser}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	for _, header := range []string{
		"Bearer " + expired.Value,
		"bearer " + valid.Value,
		"Token " + valid.Value,
		"Bearer ",
		"Bearer " + valid.Value + "x",
		valid.Value,
	} {
		status, body, _ := doRequest(t, app, http.MethodGet, "/api/tasks/all_tasks", header)
		assert.Equal(t, http.StatusUnauthorized, status, "header %q", header)
		assert.Contains(t, body, "UNAUTHENTICATED")
	}
}

func TestGateSkipsClaimsForInvalidToken(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Validate", "bad").Return(false)
	app := newGatedApp(t, verifier)

	status, _, _ := doRequest(t, app, http.MethodGet, "/api/tasks/all_tasks", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, status)
	verifier.AssertExpectations(t)
	verifier.AssertNotCalled(t, "ExtractClaims", mock.Anything)
}

func TestGateClaimsErrorIsAnonymous(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Validate", "tok").Return(true)
	verifier.On("ExtractClaims", "tok").Return(domain.Identity{}, ErrTokenInvalid)
	app := newGatedApp(t, verifier)

	status, _, _ := doRequest(t, app, http.MethodGet, "/api/tasks/all_tasks", "Bearer tok")
	assert.Equal(t, http.StatusUnauthorized, status)
	verifier.AssertExpectations(t)
}

func TestGateIsolatesConcurrentRequests(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	app := newGatedApp(t, p)

	tokens := make(map[string]string)
	for i := 0; i < 8; i++ {
		subject := fmt.Sprintf("user%d", i)
		tok, err := p.Issue(subject, []string{domain.RoleUser}, time.Now())
		require.NoError(t, err)
		tokens[subject] = tok.Value
	}

	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for subject, tok := range tokens {
			wg.Add(1)
			go func(subject, tok string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/api/tasks/all_tasks", nil)
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
				resp, err := app.Test(req, -1)
				if !assert.NoError(t, err) {
					return
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, subject, string(body))
			}(subject, tok)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/token", nil)
			resp, err := app.Test(req, -1)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, "anonymous", string(body))
		}()
	}
	wg.Wait()
}
