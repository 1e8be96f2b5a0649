package auth

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ErrConfiguration is returned when the token subsystem is constructed
// without a usable signing key.
var ErrConfiguration = errors.New("auth: signing key is not configured")

const redacted = "[REDACTED]"

// SigningKey is the symmetric HMAC secret shared by signing and
// verification. Every formatting path redacts its contents.
type SigningKey struct {
	secret []byte
}

// NewSigningKey wraps secret. A blank secret is a configuration error.
func NewSigningKey(secret string) (SigningKey, error) {
	if strings.TrimSpace(secret) == "" {
		return SigningKey{}, ErrConfiguration
	}
	return SigningKey{secret: []byte(secret)}, nil
}

// IsZero reports whether the key was never set.
func (k SigningKey) IsZero() bool {
	return len(k.secret) == 0
}

func (k SigningKey) bytes() []byte {
	return k.secret
}

func (k SigningKey) String() string   { return redacted }
func (k SigningKey) GoString() string { return redacted }

// Format covers %v, %+v, %#v, %s, %q and %x.
func (k SigningKey) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (k SigningKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (k SigningKey) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// MarshalLogObject keeps zap.Any / zap.Object from reflecting into the key.
func (k SigningKey) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("signing_key", redacted)
	return nil
}
