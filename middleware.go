package identity

import (
	"strings"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is where the decoded session lives in request locals
const DefaultContextKey = "session"

// AuthMiddleware builds the bearer token middleware chain for protected
// routes
type AuthMiddleware struct {
	auth       Authenticator
	policy     *AccessPolicy
	contextKey string
	authScheme string
	logger     Logger
}

func NewAuthMiddleware(auth Authenticator, policy *AccessPolicy, cfg Config) *AuthMiddleware {
	contextKey := cfg.GetContextKey()
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	authScheme := cfg.GetAuthScheme()
	if authScheme == "" {
		authScheme = "Bearer"
	}

	return &AuthMiddleware{
		auth:       auth,
		policy:     policy,
		contextKey: contextKey,
		authScheme: authScheme,
		logger:     defLogger{},
	}
}

func (m *AuthMiddleware) WithLogger(logger Logger) *AuthMiddleware {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// RequireAuth rejects requests without a valid access credential and
// stores the decoded session in locals
func (m *AuthMiddleware) RequireAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := m.extractToken(ctx)
			if raw == "" {
				return ctx.JSON(router.StatusUnauthorized, map[string]any{
					"error": "authentication required",
					"code":  TextCodeAuthFailed,
				})
			}

			session, err := m.auth.SessionFromToken(raw)
			if err != nil {
				m.logger.Debug("invalid access credential", "error", err)
				return ctx.JSON(router.StatusUnauthorized, map[string]any{
					"error": "invalid or expired credential",
					"code":  TextCodeAuthFailed,
				})
			}

			ctx.Locals(m.contextKey, session)
			ctx.SetContext(WithSessionContext(ctx.Context(), session))
			return next(ctx)
		}
	}
}

// RequireRoles rejects authenticated callers whose role is not in the
// allowed set. Admin always passes. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(roles ...AccountRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session, err := SessionFromContext(ctx, m.contextKey)
			if err != nil {
				return ctx.JSON(router.StatusUnauthorized, map[string]any{
					"error": "authentication required",
					"code":  TextCodeAuthFailed,
				})
			}

			principal, err := PrincipalFromSession(session)
			if err != nil {
				return ctx.JSON(router.StatusUnauthorized, map[string]any{
					"error": "invalid credential",
					"code":  TextCodeAuthFailed,
				})
			}

			if err := m.policy.RequireRole(principal, roles...); err != nil {
				return ctx.JSON(router.StatusForbidden, map[string]any{
					"error": "operation not permitted",
					"code":  TextCodeForbidden,
				})
			}

			return next(ctx)
		}
	}
}

// ContextKey exposes the locals key controllers should read
func (m *AuthMiddleware) ContextKey() string {
	return m.contextKey
}

func (m *AuthMiddleware) extractToken(ctx router.Context) string {
	header := ctx.GetString("Authorization", "")
	scheme := strings.TrimSpace(m.authScheme)
	l := len(scheme)

	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) {
		return strings.TrimSpace(header[l:])
	}

	return ""
}

// SessionFromContext retrieves the decoded session placed by RequireAuth
func SessionFromContext(ctx router.Context, key string) (Session, error) {
	val := ctx.Locals(key)
	if val == nil {
		return nil, ErrAuthFailed.Clone()
	}

	session, ok := val.(Session)
	if !ok {
		return nil, ErrAuthFailed.Clone()
	}

	return session, nil
}
