package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}
var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(r context.Context, session Session) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromStdContext finds the session in the standard context. Use
// SessionFromContext for router-based contexts.
func SessionFromStdContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// WithAccountContext sets the Account in the given context
func WithAccountContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// AccountFromContext finds the account in the context
func AccountFromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok
}

// Can is a convenience permission check against the standard context. It
// resolves the session stored by the auth middleware and evaluates the
// policy without ownership context.
func Can(ctx context.Context, policy *AccessPolicy, action Action, resource Resource) bool {
	session, ok := SessionFromStdContext(ctx)
	if !ok || policy == nil {
		return false
	}

	principal, err := PrincipalFromSession(session)
	if err != nil {
		return false
	}

	return policy.Allow(principal, action, resource)
}

// CanFromRouter is the router context flavor of Can
func CanFromRouter(ctx router.Context, policy *AccessPolicy, key string, action Action, resource Resource) bool {
	if key == "" {
		key = DefaultContextKey
	}

	session, err := SessionFromContext(ctx, key)
	if err != nil {
		return false
	}

	principal, err := PrincipalFromSession(session)
	if err != nil {
		return false
	}

	if policy == nil {
		return false
	}

	return policy.Allow(principal, action, resource)
}
