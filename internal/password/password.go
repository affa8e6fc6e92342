package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/notehub/gatekeeper/internal/domain"
)

const (
	DefaultCost = 12
	MinLength   = 8
)

// Hasher hashes and verifies account passwords with bcrypt.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a bcrypt hash of the plain-text password.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", domain.ErrInvalidInput
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.ErrInvalidInput
	}
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether plain matches hash. An empty hash never matches.
func (h *Hasher) Verify(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
