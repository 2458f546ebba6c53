package identity

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoEmptyString guards against hashing an empty password
var ErrNoEmptyString = errors.New("password cannot be empty")

// ErrMismatchedHashAndPassword means the password did not match the hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPassword generates a throwaway cleartext password used when an
// admin provisions an account and the owner sets their own later.
func RandomPassword() string {
	return uuid.NewString()
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	h, err := HashPassword(RandomPassword())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
