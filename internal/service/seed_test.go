package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/domain"
)

func TestSeederSkipsPopulatedDatabase(t *testing.T) {
	users := new(mockUserRepo)
	tasks := new(mockTaskRepo)
	users.On("Count", mock.Anything).Return(int64(3), nil)

	require.NoError(t, NewSeeder(users, tasks, auth.NewBcryptHasher(bcrypt.MinCost), zap.NewNop()).Run(context.Background()))
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSeederCreatesDemoData(t *testing.T) {
	users := new(mockUserRepo)
	tasks := new(mockTaskRepo)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	var created []domain.User
	users.On("Count", mock.Anything).Return(int64(0), nil)
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		u := args.Get(1).(*domain.User)
		u.ID = u.Username + "-id"
		created = append(created, *u)
	}).Return(nil)
	tasks.On("Create", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, NewSeeder(users, tasks, hasher, zap.NewNop()).Run(context.Background()))

	require.Len(t, created, seedUsers)
	assert.Equal(t, "user1", created[0].Username)
	assert.True(t, created[0].Identity().HasRole(domain.RoleAdmin))
	assert.False(t, created[1].Identity().HasRole(domain.RoleAdmin))
	assert.True(t, hasher.Verify("password2", created[1].PasswordHash))
	tasks.AssertNumberOfCalls(t, "Create", seedUsers*seedTasksPerUser)
}
