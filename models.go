package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleApplicant is a self-registered job seeker
	RoleApplicant AccountRole = "applicant"
	// RoleHR is a recruiter provisioned by an admin
	RoleHR AccountRole = "hr"
	// RoleAdmin is a platform administrator
	RoleAdmin AccountRole = "admin"
)

// AuthProvider identifies how an account authenticates
type AuthProvider = string

const (
	// ProviderLocal is email and password authentication
	ProviderLocal AuthProvider = "local"
	// ProviderGoogle is federated Google sign in
	ProviderGoogle AuthProvider = "google"
)

// Account is the identity root for the recruiting platform
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string       `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string       `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string       `bun:"last_name,notnull" json:"last_name,omitempty"`
	Role          AccountRole  `bun:"account_role,notnull" json:"role,omitempty"`
	Provider      AuthProvider `bun:"auth_provider,notnull" json:"auth_provider,omitempty"`
	// PasswordHash stays empty until a credential is set; an empty hash
	// never authenticates.
	PasswordHash  string `bun:"password_hash" json:"-"`
	EmailVerified bool   `bun:"is_email_verified" json:"is_email_verified"`
	// Allowed is persisted for schema parity but not enforced; Active is
	// the canonical login gate.
	Allowed   bool       `bun:"is_allowed" json:"is_allowed"`
	Active    bool       `bun:"is_active" json:"is_active"`
	Staff     bool       `bun:"is_staff" json:"is_staff"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins first and last name
func (a *Account) FullName() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", a.FirstName, a.LastName))
}

// HasUsableCredential reports whether a password was ever set
func (a *Account) HasUsableCredential() bool {
	return a.PasswordHash != ""
}

// SecurityStamp derives the account's state fingerprint from its
// security sensitive fields. Any credential or verification change yields
// a new stamp, which invalidates every signed token issued against the
// previous one.
func (a *Account) SecurityStamp() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%t", a.PasswordHash, NormalizeEmail(a.Email), a.EmailVerified)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeEmail lower cases and trims an email address so lookups and
// uniqueness checks are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidRole checks the role against the closed role set
func IsValidRole(r AccountRole) bool {
	switch r {
	case RoleApplicant, RoleHR, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, IsValidRole(role)
}

// ApplicantProfile holds the applicant facing profile created alongside
// every applicant account
type ApplicantProfile struct {
	bun.BaseModel `bun:"table:applicant_profiles,alias:apf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Bio           string     `bun:"bio" json:"bio,omitempty"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	LinkedIn      string     `bun:"linkedin" json:"linkedin,omitempty"`
	Contacts      string     `bun:"contacts" json:"contacts,omitempty"`
	Website       string     `bun:"website" json:"website,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HRProfile holds the recruiter profile provisioned by an admin
type HRProfile struct {
	bun.BaseModel `bun:"table:hr_profiles,alias:hrp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Bio           string     `bun:"bio" json:"bio,omitempty"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	Company       string     `bun:"company" json:"company,omitempty"`
	Department    string     `bun:"department" json:"department,omitempty"`
	LinkedIn      string     `bun:"linkedin" json:"linkedin,omitempty"`
	Contacts      string     `bun:"contacts" json:"contacts,omitempty"`
	Website       string     `bun:"website" json:"website,omitempty"`
	CreatedByID   *uuid.UUID `bun:"created_by_id,nullzero,type:uuid" json:"created_by_id,omitempty"`
	CreatedBy     *Account   `bun:"rel:belongs-to,join:created_by_id=id" json:"created_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccountSummary is the flat external projection of an account used by
// register, login, and me responses
type AccountSummary struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"is_email_verified"`
	Active        bool       `json:"is_active"`
	Provider      string     `json:"auth_provider"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// SummarizeAccount projects an account into its external representation
func SummarizeAccount(a *Account) AccountSummary {
	return AccountSummary{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		FullName:      a.FullName(),
		Role:          string(a.Role),
		EmailVerified: a.EmailVerified,
		Active:        a.Active,
		Provider:      string(a.Provider),
		CreatedAt:     a.CreatedAt,
	}
}
