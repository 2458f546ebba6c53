package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
)

func TestHashPassword(t *testing.T) {
	t.Run("valid password round trips", func(t *testing.T) {
		hash, err := identity.HashPassword("securePassword123!")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)

		assert.NoError(t, identity.ComparePasswordAndHash("securePassword123!", hash))
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := identity.HashPassword("")
		assert.ErrorIs(t, err, identity.ErrNoEmptyString)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	t.Run("matching password", func(t *testing.T) {
		assert.NoError(t, identity.ComparePasswordAndHash(password, hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		err := identity.ComparePasswordAndHash("wrongPassword", hash)
		assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)
	})

	t.Run("empty hash never authenticates", func(t *testing.T) {
		assert.Error(t, identity.ComparePasswordAndHash(password, ""))
	})
}

func TestRandomPassword(t *testing.T) {
	first := identity.RandomPassword()
	second := identity.RandomPassword()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
