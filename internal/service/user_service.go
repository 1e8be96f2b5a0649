package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/repository"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

// UserUpdate carries the mutable fields of an account. An empty Password
// keeps the current hash; nil Roles keeps the current roles.
type UserUpdate struct {
	Password string
	Roles    []string
}

// UserService manages user accounts. Only administrators reach it.
type UserService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

// CreateUser hashes the password and stores the account. Accounts without
// roles get USER.
func (s *UserService) CreateUser(ctx context.Context, username, password string, roles []string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	roles = domain.NormalizeRoles(roles)
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Username: username, PasswordHash: hash, Roles: roles}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, err
	}
	return user, nil
}

// GetUser loads an account by username.
func (s *UserService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, mapUserErr(err, username)
	}
	return user, nil
}

// UpdateUser re-hashes the password and replaces roles as requested.
func (s *UserService) UpdateUser(ctx context.Context, username string, upd UserUpdate) (*domain.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if upd.Password != "" {
		hash, err := s.hasher.Hash(upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if upd.Roles != nil {
		user.Roles = domain.NormalizeRoles(upd.Roles)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserErr(err, username)
	}
	return user, nil
}

// DeleteUser removes the account and, by cascade, its tasks.
func (s *UserService) DeleteUser(ctx context.Context, username string) error {
	if err := s.users.Delete(ctx, username); err != nil {
		return mapUserErr(err, username)
	}
	return nil
}

// ListUsers returns one page of accounts ordered by username.
func (s *UserService) ListUsers(ctx context.Context, page, size int) (*domain.Page[domain.User], error) {
	page, size = normalizePageRequest(page, size)
	users, err := s.users.List(ctx, size, page*size)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Page[domain.User]{Items: users, Number: page, Size: size, Total: total}, nil
}

func mapUserErr(err error, username string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("user", map[string]any{"username": username})
	}
	return err
}

func normalizePageRequest(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
