package identity

import "github.com/google/uuid"

// Resource names the protected surfaces evaluated by the policy
type Resource = string

const (
	ResourceAccounts   Resource = "accounts"
	ResourceHRProfiles Resource = "hr_profiles"
	ResourceVacancies  Resource = "vacancies"
)

// Action is what the caller wants to do to a resource
type Action = string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Principal is the policy's view of the caller
type Principal struct {
	AccountID uuid.UUID
	Role      AccountRole
}

// PrincipalFromSession builds a Principal out of a decoded session
func PrincipalFromSession(session Session) (Principal, error) {
	id, err := session.GetAccountUUID()
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		AccountID: id,
		Role:      session.GetRole(),
	}, nil
}

// AccessPolicy is the single place where authorization decisions are made.
// Handlers ask, the policy answers, nobody else checks roles inline.
//
// The rules: admins can do anything. Recruiters manage recruiting content
// they own. Everyone authenticated can read open directories. Accounts are
// managed only by admins, except that every account holder may read and
// update their own profile.
type AccessPolicy struct{}

func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// Allow is the generic role and resource check without ownership context
func (p *AccessPolicy) Allow(principal Principal, action Action, resource Resource) bool {
	if principal.Role == RoleAdmin {
		return true
	}

	switch resource {
	case ResourceAccounts:
		// only admins manage the account directory
		return false
	case ResourceHRProfiles:
		if action == ActionRead {
			return principal.Role == RoleHR
		}
		return false
	case ResourceVacancies:
		if action == ActionRead {
			return true
		}
		return principal.Role == RoleHR
	default:
		return false
	}
}

// AllowOwned checks an action against a record owned by ownerID. Ownership
// grants recruiters and applicants access to their own records.
func (p *AccessPolicy) AllowOwned(principal Principal, action Action, resource Resource, ownerID uuid.UUID) bool {
	if principal.Role == RoleAdmin {
		return true
	}

	if principal.AccountID == ownerID {
		switch action {
		case ActionRead, ActionUpdate:
			return true
		}
	}

	return p.Allow(principal, action, resource)
}

// RequireRole returns ErrForbidden unless the principal holds one of the
// given roles. Admin always passes.
func (p *AccessPolicy) RequireRole(principal Principal, roles ...AccountRole) error {
	if principal.Role == RoleAdmin {
		return nil
	}
	for _, role := range roles {
		if principal.Role == role {
			return nil
		}
	}
	return ErrForbidden.Clone()
}
