package identity

// AccountIdentity adapts an Account into the Identity interface for session
// issuance.
type AccountIdentity struct {
	account *Account
}

// NewIdentityFromAccount returns an Identity adapter for the provided account.
func NewIdentityFromAccount(account *Account) Identity {
	if account == nil {
		return nil
	}
	return AccountIdentity{account: account}
}

// ID returns the account's ID as a string.
func (a AccountIdentity) ID() string {
	if a.account == nil {
		return ""
	}
	return a.account.ID.String()
}

// Email returns the account's email address.
func (a AccountIdentity) Email() string {
	if a.account == nil {
		return ""
	}
	return a.account.Email
}

// Role returns the account's role as a string.
func (a AccountIdentity) Role() string {
	if a.account == nil {
		return ""
	}
	return string(a.account.Role)
}

// IsActive reports whether the account may authenticate.
func (a AccountIdentity) IsActive() bool {
	if a.account == nil {
		return false
	}
	return a.account.Active
}

// Account exposes the underlying record for callers that need more than the
// Identity view.
func (a AccountIdentity) Account() *Account {
	return a.account
}
