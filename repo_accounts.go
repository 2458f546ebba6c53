package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResetAccountPasswordSQL updates credential and verification in one
// statement. Proving control of a reset token proves control of the email,
// so the verification flag rides along with the new hash.
var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE,
	"password_hash" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// SetAccountPasswordSQL replaces the credential and nothing else. Used by
// administrative resets where no mailbox proof was presented, so the
// verification flag stays untouched.
var SetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// ActivateWithPasswordSQL is the provisioned recruiter variant. Setting the
// initial password also verifies and activates the account.
var ActivateWithPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE,
	"is_active" = TRUE,
	"password_hash" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var VerifyAccountEmailSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_verified" = TRUE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var ToggleAccountActiveSQL = `UPDATE "accounts" AS "acc"
SET
	"is_active" = NOT "is_active"
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	ResolveOrCreate(ctx context.Context, record *Account) (*Account, bool, error)
	ResolveOrCreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, bool, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	ActivateWithPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ActivateWithPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	VerifyEmail(ctx context.Context, id uuid.UUID) error
	VerifyEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ToggleActive(ctx context.Context, id uuid.UUID) (*Account, error)
	ToggleActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// ResolveOrCreate looks the account up by email and creates it when missing.
// The bool reports whether a new record was created.
func (a *accounts) ResolveOrCreate(ctx context.Context, record *Account) (*Account, bool, error) {
	return a.ResolveOrCreateTx(ctx, a.db, record)
}

func (a *accounts) ResolveOrCreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, bool, error) {
	identifier := record.Email
	if record.ID != uuid.Nil {
		identifier = record.ID.String()
	}

	account, err := a.GetByIdentifierTx(ctx, tx, identifier)
	if err == nil {
		return account, false, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, false, err
	}

	account, err = a.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, false, err
	}

	return account, true, nil
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execReturning(ctx, tx, ResetAccountPasswordSQL, passwordHash, id)
}

func (a *accounts) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execReturning(ctx, tx, SetAccountPasswordSQL, passwordHash, id)
}

func (a *accounts) ActivateWithPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ActivateWithPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ActivateWithPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execReturning(ctx, tx, ActivateWithPasswordSQL, passwordHash, id)
}

func (a *accounts) VerifyEmail(ctx context.Context, id uuid.UUID) error {
	return a.VerifyEmailTx(ctx, a.db, id)
}

func (a *accounts) VerifyEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.execReturning(ctx, tx, VerifyAccountEmailSQL, id)
}

func (a *accounts) ToggleActive(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.ToggleActiveTx(ctx, a.db, id)
}

func (a *accounts) ToggleActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, ToggleAccountActiveSQL, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *accounts) execReturning(ctx context.Context, tx bun.IDB, query string, args ...any) error {
	normalized := make([]any, 0, len(args))
	for _, arg := range args {
		if id, ok := arg.(uuid.UUID); ok {
			normalized = append(normalized, id.String())
			continue
		}
		normalized = append(normalized, arg)
	}

	res, err := a.Repository.RawTx(ctx, tx, query, normalized...)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"query": "account update",
			})
	}

	return nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleApplicant
	}

	if record.Provider == "" {
		record.Provider = ProviderLocal
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  NormalizeEmail(trimmed),
		})
	}

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
