package identity

import "github.com/goliatone/go-errors"

const (
	TextCodeValidation      = "identity_validation_failed"
	TextCodeConflict        = "identity_email_conflict"
	TextCodeInvalidToken    = "identity_invalid_token"
	TextCodeAuthFailed      = "identity_auth_failed"
	TextCodeAccountInactive = "identity_account_inactive"
	TextCodeForbidden       = "identity_forbidden"
	TextCodeNotFound        = "identity_not_found"
	TextCodeUpstream        = "identity_upstream_unavailable"
	TextCodeSessionRevoked  = "identity_session_revoked"
	TextCodeImmutableClaim  = "identity_immutable_claim"
)

// ErrEmailConflict is returned when registering with an email that already
// belongs to an account.
var ErrEmailConflict = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeConflict)

// ErrInvalidToken is the single error for every signed token failure. Bad
// signature, expiry, stale account state, and unknown accounts all collapse
// into it so callers cannot distinguish why validation failed.
var ErrInvalidToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeBadRequest)

// ErrAuthFailed is returned for bad credentials. It deliberately does not
// reveal whether the email exists.
var ErrAuthFailed = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(errors.CodeUnauthorized)

// ErrAccountInactive is returned when the credentials were correct but the
// account is deactivated.
var ErrAccountInactive = errors.New("account is inactive", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeForbidden)

// ErrForbidden is returned when the caller is authenticated but the policy
// denies the operation.
var ErrForbidden = errors.New("operation not permitted", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned when an account lookup by id misses.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrSessionRevoked is returned when a refresh credential was already
// revoked.
var ErrSessionRevoked = errors.New("session has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrUpstreamUnavailable is returned when the federation provider cannot be
// reached or is misconfigured.
var ErrUpstreamUnavailable = errors.New("identity provider unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeUpstream).
	WithCode(errors.CodeInternal)

// ErrImmutableClaimMutation is returned when a claims decorator touches a
// registered or identity claim instead of the extension fields.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(errors.CodeInternal)

// NewValidationError wraps field level validation output. The validation
// library returns a map of field to message which we surface as metadata.
func NewValidationError(err error) *errors.Error {
	return errors.New("validation failed", errors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": err.Error(),
		})
}
