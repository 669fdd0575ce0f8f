package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password accepted at signup.
const MinPasswordLen = 8

// bcrypt ignores everything past 72 bytes; reject instead of truncating.
const maxPasswordLen = 72

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
)

// PasswordHasher hashes and verifies patient passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt-backed hasher. Costs outside the valid
// bcrypt range fall back to the library default.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}
	if len(password) > maxPasswordLen {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (b *bcryptHasher) Compare(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}
