package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/taskhub/task-auth-service/internal/domain"
)

const defaultTokenTTL = 60 * time.Minute

var (
	// ErrEmptySubject is returned when issuing a token without a subject.
	ErrEmptySubject = errors.New("auth: token subject is required")
	// ErrTokenInvalid is returned by ExtractClaims for input that does not
	// carry a signature made with the current key.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// Claims describes the JWT payload: sub, roles, iat and exp.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// IssuedToken is a freshly signed token together with the claims it carries.
type IssuedToken struct {
	Value     string
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and validates HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type TokenProvider struct {
	key SigningKey
	ttl time.Duration
	now func() time.Time
}

// NewTokenProvider builds a provider over key. A non-positive ttl falls back
// to one hour.
func NewTokenProvider(key SigningKey, ttl time.Duration) (*TokenProvider, error) {
	if key.IsZero() {
		return nil, ErrConfiguration
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenProvider{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (p *TokenProvider) TTL() time.Duration {
	return p.ttl
}

// Issue signs a token for subject valid from now until now+TTL.
func (p *TokenProvider) Issue(subject string, roles []string, now time.Time) (*IssuedToken, error) {
	if p == nil || p.key.IsZero() {
		return nil, ErrConfiguration
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrEmptySubject
	}

	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(p.ttl))
	claims := &Claims{
		Roles: domain.NormalizeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key.bytes())
	if err != nil {
		return nil, err
	}
	return &IssuedToken{
		Value:     signed,
		Subject:   subject,
		Roles:     claims.Roles,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Validate reports whether token is correctly signed and unexpired right now.
func (p *TokenProvider) Validate(token string) bool {
	if p == nil {
		return false
	}
	return p.ValidateAt(token, p.now())
}

// ValidateAt reports whether token is correctly signed and now is strictly
// before its expiry. Every failure collapses to false.
func (p *TokenProvider) ValidateAt(token string, now time.Time) bool {
	if p == nil || p.key.IsZero() {
		return false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, p.keyFunc)
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(*Claims)
	return ok && strings.TrimSpace(claims.Subject) != ""
}

// ExtractClaims returns the identity embedded in a token that has already
// passed Validate. The signature is rechecked, expiry is not.
func (p *TokenProvider) ExtractClaims(token string) (domain.Identity, error) {
	if p == nil || p.key.IsZero() {
		return domain.Identity{}, ErrConfiguration
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, p.keyFunc)
	if err != nil {
		return domain.Identity{}, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return domain.Identity{}, ErrTokenInvalid
	}
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return domain.Identity{Subject: claims.Subject, Roles: roles}, nil
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (any, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return p.key.bytes(), nil
}
