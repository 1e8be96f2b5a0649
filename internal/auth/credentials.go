package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/taskhub/task-auth-service/internal/domain"
)

var (
	// ErrInvalidCredentials matches every credential failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnknownUser means no account exists for the username.
	ErrUnknownUser = fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	// ErrPasswordMismatch means the password did not match the stored hash.
	ErrPasswordMismatch = fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
)

// IdentityStore is the read side of the user store needed at login.
type IdentityStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CredentialVerifier checks username/password pairs against stored hashes.
type CredentialVerifier struct {
	store  IdentityStore
	hasher PasswordHasher

	dummyOnce   sync.Once
	dummyDigest string
}

// NewCredentialVerifier constructs a verifier.
func NewCredentialVerifier(store IdentityStore, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{store: store, hasher: hasher}
}

// Authenticate returns the stored identity when password matches.
func (v *CredentialVerifier) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	user, err := v.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Spend a hash comparison anyway so response time does not
			// reveal whether the username exists.
			v.hasher.Verify(password, v.dummy())
			return domain.Identity{}, ErrUnknownUser
		}
		return domain.Identity{}, err
	}
	if user == nil {
		v.hasher.Verify(password, v.dummy())
		return domain.Identity{}, ErrUnknownUser
	}
	if !v.hasher.Verify(password, user.PasswordHash) {
		return domain.Identity{}, ErrPasswordMismatch
	}
	return user.Identity(), nil
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		digest, err := v.hasher.Hash("timing-equalizer")
		if err == nil {
			v.dummyDigest = digest
		}
	})
	return v.dummyDigest
}
