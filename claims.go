package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse distinguishes the two halves of a session pair
type TokenUse = string

const (
	// TokenUseAccess is the short lived API credential
	TokenUseAccess TokenUse = "access"
	// TokenUseRefresh is the long lived renewal credential
	TokenUseRefresh TokenUse = "refresh"
)

// SessionClaims are the JWT claims carried by session credentials.
// Metadata is the only field claims decorators are allowed to write.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID         string         `json:"uid,omitempty"`
	AccountRole string         `json:"role,omitempty"`
	TokenUse    string         `json:"token_use,omitempty"`
	Metadata    map[string]any `json:"meta,omitempty"`
}

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account id carried by the claims
func (c *SessionClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role
func (c *SessionClaims) Role() string {
	return c.AccountRole
}

// IsRefresh reports whether the claims belong to a refresh credential
func (c *SessionClaims) IsRefresh() bool {
	return c.TokenUse == TokenUseRefresh
}

// TokenID returns the JTI claim
func (c *SessionClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
