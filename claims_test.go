package identity_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
)

func TestSessionClaimsAccessors(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	claims := &identity.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "subject-id",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		AccountRole: identity.RoleHR,
		TokenUse:    identity.TokenUseRefresh,
	}

	assert.Equal(t, "subject-id", claims.Subject())
	assert.Equal(t, "subject-id", claims.AccountID(), "falls back to subject when uid is empty")
	assert.Equal(t, identity.RoleHR, claims.Role())
	assert.True(t, claims.IsRefresh())
	assert.Equal(t, "jti-1", claims.TokenID())
	assert.Equal(t, now, claims.IssuedAt())
	assert.Equal(t, now.Add(time.Hour), claims.Expires())

	claims.UID = "uid-wins"
	assert.Equal(t, "uid-wins", claims.AccountID())

	empty := &identity.SessionClaims{}
	assert.True(t, empty.Expires().IsZero())
	assert.False(t, empty.IsRefresh())
}

func TestClaimsDecoration(t *testing.T) {
	cfg := newTestConfig()

	t.Run("decorator enriches extension claims", func(t *testing.T) {
		issuer := identity.NewSessionIssuer(new(MockIdentityProvider), cfg).
			WithClaimsDecorator(identity.ClaimsDecoratorFunc(func(id identity.Identity, claims *identity.SessionClaims) error {
				if claims.Metadata == nil {
					claims.Metadata = map[string]any{}
				}
				claims.Metadata["department"] = "engineering"
				return nil
			}))

		pair, err := issuer.IssuePair(activeIdentity())
		require.NoError(t, err)

		token, err := jwt.ParseWithClaims(pair.AccessToken, &identity.SessionClaims{}, func(t *jwt.Token) (any, error) {
			return []byte(cfg.GetSigningKey()), nil
		})
		require.NoError(t, err)

		claims, ok := token.Claims.(*identity.SessionClaims)
		require.True(t, ok)
		assert.Equal(t, "engineering", claims.Metadata["department"])
	})

	t.Run("nil decorator is a no op", func(t *testing.T) {
		issuer := identity.NewSessionIssuer(new(MockIdentityProvider), cfg).
			WithClaimsDecorator(nil)

		_, err := issuer.IssuePair(activeIdentity())
		assert.NoError(t, err)
	})

	t.Run("decorator errors abort issuance", func(t *testing.T) {
		issuer := identity.NewSessionIssuer(new(MockIdentityProvider), cfg).
			WithClaimsDecorator(identity.ClaimsDecoratorFunc(func(id identity.Identity, claims *identity.SessionClaims) error {
				return fmt.Errorf("directory lookup failed")
			}))

		_, err := issuer.IssuePair(activeIdentity())
		assert.Error(t, err)
	})
}

func TestClaimsGuardRejectsProtectedMutations(t *testing.T) {
	cfg := newTestConfig()

	tests := []struct {
		name   string
		mutate func(claims *identity.SessionClaims)
	}{
		{"subject", func(c *identity.SessionClaims) { c.RegisteredClaims.Subject = "someone-else" }},
		{"issuer", func(c *identity.SessionClaims) { c.RegisteredClaims.Issuer = "rogue-issuer" }},
		{"uid", func(c *identity.SessionClaims) { c.UID = "someone-else" }},
		{"role", func(c *identity.SessionClaims) { c.AccountRole = identity.RoleAdmin }},
		{"token use", func(c *identity.SessionClaims) { c.TokenUse = identity.TokenUseRefresh }},
		{"jti", func(c *identity.SessionClaims) { c.RegisteredClaims.ID = "replayed" }},
		{"audience", func(c *identity.SessionClaims) { c.RegisteredClaims.Audience = append(c.RegisteredClaims.Audience, "extra") }},
		{"expiry", func(c *identity.SessionClaims) {
			c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(24 * 365 * time.Hour))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issuer := identity.NewSessionIssuer(new(MockIdentityProvider), cfg).
				WithClaimsDecorator(identity.ClaimsDecoratorFunc(func(id identity.Identity, claims *identity.SessionClaims) error {
					tc.mutate(claims)
					return nil
				}))

			_, err := issuer.IssuePair(activeIdentity())
			require.Error(t, err)
			assertTextCode(t, err, identity.TextCodeImmutableClaim)
		})
	}
}
