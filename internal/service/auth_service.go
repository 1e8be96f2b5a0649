package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/events"
	"github.com/taskhub/task-auth-service/internal/observability"
)

// ErrLoginLocked is returned while a username is locked out after repeated
// failed logins.
var ErrLoginLocked = errors.New("too many failed login attempts")

// CredentialChecker checks a username/password pair.
type CredentialChecker interface {
	Authenticate(ctx context.Context, username, password string) (domain.Identity, error)
}

// AuthService coordinates the login flow: credential check, then token issue.
type AuthService struct {
	verifier   CredentialChecker
	tokens     *auth.TokenProvider
	throttle   LoginThrottle
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Verifier   CredentialChecker
	Tokens     *auth.TokenProvider
	Throttle   LoginThrottle
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	throttle := deps.Throttle
	if throttle == nil {
		throttle = noopThrottle{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		throttle:   throttle,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Login verifies credentials and issues a signed token. Every credential
// failure is reported as auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*auth.IssuedToken, error) {
	locked, err := s.throttle.Locked(ctx, username)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	}
	if locked {
		s.metrics.RecordLogin("locked")
		return nil, ErrLoginLocked
	}

	identity, err := s.verifier.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.RecordLogin("error")
			return nil, err
		}
		if terr := s.throttle.RecordFailure(ctx, username); terr != nil {
			s.logger.Warn("record failed login", zap.Error(terr))
		}
		s.metrics.RecordLogin("invalid_credentials")
		publish(ctx, s.dispatcher, s.logger, newEvent(events.EventLoginFailed, username, "", nil))
		return nil, auth.ErrInvalidCredentials
	}

	if err := s.throttle.Reset(ctx, username); err != nil {
		s.logger.Warn("reset failed logins", zap.Error(err))
	}

	token, err := s.tokens.Issue(identity.Subject, identity.Roles, s.now())
	if err != nil {
		s.metrics.RecordLogin("error")
		return nil, err
	}
	s.metrics.RecordLogin("success")
	publish(ctx, s.dispatcher, s.logger, newEvent(events.EventUserLoggedIn, identity.Subject, "", nil))
	return token, nil
}

// Logout is a no-op: tokens are stateless and expire on their own.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

// TokenProvider exposes the underlying token provider for middleware usage.
func (s *AuthService) TokenProvider() *auth.TokenProvider {
	return s.tokens
}
