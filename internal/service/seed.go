package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/repository"
)

const (
	seedUsers        = 10
	seedTasksPerUser = 3
)

// Seeder fills an empty database with demo accounts and tasks.
type Seeder struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	hasher auth.PasswordHasher
	logger *zap.Logger
}

// NewSeeder builds a seeder.
func NewSeeder(users repository.UserRepository, tasks repository.TaskRepository, hasher auth.PasswordHasher, logger *zap.Logger) *Seeder {
	return &Seeder{users: users, tasks: tasks, hasher: hasher, logger: logger}
}

// Run creates user1..user10 (password "password<i>", user1 also ADMIN) with
// three open tasks each. It does nothing when any user already exists.
func (s *Seeder) Run(ctx context.Context) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		s.logger.Debug("users present; skipping seed", zap.Int64("count", count))
		return nil
	}

	for i := 1; i <= seedUsers; i++ {
		hash, err := s.hasher.Hash(fmt.Sprintf("password%d", i))
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		roles := []string{domain.RoleUser}
		if i == 1 {
			roles = append(roles, domain.RoleAdmin)
		}
		user := &domain.User{Username: fmt.Sprintf("user%d", i), PasswordHash: hash, Roles: roles}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create seed user %s: %w", user.Username, err)
		}

		for j := 1; j <= seedTasksPerUser; j++ {
			task := &domain.Task{
				Name:     fmt.Sprintf("Task %d for %s", j, user.Username),
				UserID:   user.ID,
				Username: user.Username,
			}
			if err := s.tasks.Create(ctx, task); err != nil {
				return fmt.Errorf("create seed task: %w", err)
			}
		}
	}

	s.logger.Info("seed data created", zap.Int("users", seedUsers), zap.Int("tasks", seedUsers*seedTasksPerUser))
	return nil
}
