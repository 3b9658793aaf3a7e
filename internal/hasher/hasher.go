// Package hasher wraps bcrypt for one-way password hashing.
package hasher

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes and verifies passwords. Every hash embeds its own salt
// and cost, so nothing besides the hash string needs to be stored.
type BcryptHasher struct {
	cost   int
	logger *zap.Logger
}

// New returns a hasher using the given bcrypt cost.
func New(cost int, logger *zap.Logger) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BcryptHasher{cost: cost, logger: logger}, nil
}

// Hash returns a salted bcrypt hash of plaintext.
// Passwords over bcrypt's 72-byte limit are rejected, not truncated.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. It never fails:
// a malformed hash is logged and treated as a mismatch.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		h.logger.Warn("password verification failed on malformed hash", zap.Error(err))
	}
	return false
}
