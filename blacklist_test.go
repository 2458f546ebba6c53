package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
)

func TestInMemoryRevokedTokenCache(t *testing.T) {
	cache := identity.NewInMemoryRevokedTokenCache()

	assert.False(t, cache.IsRevoked("jti-1"))

	require.NoError(t, cache.Add("jti-1", time.Now().Add(time.Hour)))
	assert.True(t, cache.IsRevoked("jti-1"))
	assert.False(t, cache.IsRevoked("jti-2"))

	// revoking twice is a no-op
	require.NoError(t, cache.Add("jti-1", time.Now().Add(time.Hour)))
	assert.True(t, cache.IsRevoked("jti-1"))
}

func TestInMemoryRevokedTokenCacheCleanup(t *testing.T) {
	cache := identity.NewInMemoryRevokedTokenCache()

	require.NoError(t, cache.Add("expired", time.Now().Add(-time.Minute)))
	require.NoError(t, cache.Add("live", time.Now().Add(time.Hour)))

	cache.Cleanup()

	assert.False(t, cache.IsRevoked("expired"))
	assert.True(t, cache.IsRevoked("live"))
}
