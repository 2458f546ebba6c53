package identity

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// HRController serves recruiter provisioning and management. Listing and
// deleting are admin only, reading and updating a profile is open to its
// owner as well. The set-password endpoint is anonymous, the signed token
// is the credential.
type HRController struct {
	Logger  Logger
	Repo    RepositoryManager
	Tokens  *SignedTokenService
	Policy  *AccessPolicy
	Sink    NotificationSink
	AppName string
	BaseURL string
}

type HRControllerOption func(*HRController) *HRController

func NewHRController(opts ...HRControllerOption) *HRController {
	c := &HRController{
		Logger: defLogger{},
		Policy: NewAccessPolicy(),
		Sink:   noopNotificationSink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in hr controller...")
	}

	if c.Tokens == nil {
		panic("Missing SignedTokenService in hr controller...")
	}

	return c
}

func WithHRLogger(logger Logger) HRControllerOption {
	return func(c *HRController) *HRController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithHRRepo(repo RepositoryManager) HRControllerOption {
	return func(c *HRController) *HRController {
		c.Repo = repo
		return c
	}
}

func WithHRTokens(tokens *SignedTokenService) HRControllerOption {
	return func(c *HRController) *HRController {
		c.Tokens = tokens
		return c
	}
}

func WithHRPolicy(policy *AccessPolicy) HRControllerOption {
	return func(c *HRController) *HRController {
		if policy != nil {
			c.Policy = policy
		}
		return c
	}
}

func WithHRNotifications(sink NotificationSink) HRControllerOption {
	return func(c *HRController) *HRController {
		c.Sink = normalizeNotificationSink(sink)
		return c
	}
}

func WithHRBranding(appName, baseURL string) HRControllerOption {
	return func(c *HRController) *HRController {
		c.AppName = appName
		c.BaseURL = baseURL
		return c
	}
}

// RegisterRoutes mounts the recruiter management surface
func (a *HRController) RegisterRoutes(group RouteRegistrar, mw *AuthMiddleware) {
	group.Post("/set-password", a.SetPassword)

	group.Get("/me", a.GetMe, mw.RequireAuth(), mw.RequireRoles(RoleHR))
	group.Patch("/me", a.UpdateMe, mw.RequireAuth(), mw.RequireRoles(RoleHR))

	group.Get("/profiles", a.ListProfiles, mw.RequireAuth(), mw.RequireRoles(RoleAdmin))
	group.Post("/profiles", a.Provision, mw.RequireAuth(), mw.RequireRoles(RoleAdmin))
	group.Get("/profiles/:id", a.GetProfile, mw.RequireAuth())
	group.Patch("/profiles/:id", a.UpdateProfile, mw.RequireAuth())
	group.Delete("/profiles/:id", a.DeleteProfile, mw.RequireAuth(), mw.RequireRoles(RoleAdmin))
	group.Post("/profiles/:id/toggle-active", a.ToggleActive, mw.RequireAuth(), mw.RequireRoles(RoleAdmin))
	group.Post("/profiles/:id/reset-password", a.ResetPassword, mw.RequireAuth(), mw.RequireRoles(RoleAdmin))
}

// ValidatePhoneNumber checks the value parses as a real phone number
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("must be a valid phone number", errors.CategoryValidation)
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number", errors.CategoryValidation)
	}

	return nil
}

// ProvisionHRPayload creates a recruiter account plus profile
type ProvisionHRPayload struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

func (r ProvisionHRPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Company, validation.Length(0, 200)),
		validation.Field(&r.Department, validation.Length(0, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
	)
}

func (a *HRController) Provision(ctx router.Context) error {
	payload := new(ProvisionHRPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	session, err := SessionFromContext(ctx, DefaultContextKey)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	createdBy, _ := session.GetAccountUUID()

	var resp *ProvisionHRResponse
	handler := NewProvisionHRHandler(a.Repo, a.Tokens).
		WithNotificationSink(a.Sink).
		WithLogger(a.Logger).
		WithBranding(a.AppName, a.BaseURL)

	if err := handler.Execute(ctx.Context(), ProvisionHRMessage{
		Email:      payload.Email,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Company:    payload.Company,
		Department: payload.Department,
		Phone:      payload.Phone,
		CreatedBy:  createdBy,
		OnResponse: func(r *ProvisionHRResponse) {
			resp = r
		},
	}); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusCreated, hrProfileDetail(resp.Profile, resp.Account))
}

// SetPasswordPayload is the provisioned recruiter's first credential
type SetPasswordPayload struct {
	UID             string `json:"uid"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r SetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *HRController) SetPassword(ctx router.Context) error {
	payload := new(SetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	handler := NewHRSetPasswordHandler(a.Repo, a.Tokens).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), HRSetPasswordMessage{
		UID:      payload.UID,
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "password set, account active",
	})
}

func (a *HRController) ListProfiles(ctx router.Context) error {
	profiles, err := a.Repo.HRProfiles().ListWithAccounts(ctx.Context())
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	items := make([]map[string]any, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, hrProfileSummary(p))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"count":   len(items),
		"results": items,
	})
}

func (a *HRController) GetProfile(ctx router.Context) error {
	profile, _, err := a.loadAuthorized(ctx, ActionRead)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, hrProfileDetail(profile, profile.Account))
}

// UpdateHRProfilePayload is the nested update: account fields alongside
// profile fields, persisted in two steps inside one transaction
type UpdateHRProfilePayload struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Bio        *string `json:"bio"`
	Phone      *string `json:"phone"`
	Company    *string `json:"company"`
	Department *string `json:"department"`
	LinkedIn   *string `json:"linkedin"`
	Contacts   *string `json:"contacts"`
	Website    *string `json:"website"`
}

func (r UpdateHRProfilePayload) Validate() error {
	phone := ""
	if r.Phone != nil {
		phone = *r.Phone
	}
	return validation.Validate(phone, validation.By(ValidatePhoneNumber))
}

func (a *HRController) UpdateProfile(ctx router.Context) error {
	payload := new(UpdateHRProfilePayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	profile, _, err := a.loadAuthorized(ctx, ActionUpdate)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	account, err := a.persistProfileUpdate(ctx, profile, payload)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, hrProfileDetail(profile, account))
}

// GetMe returns the recruiter's own profile
func (a *HRController) GetMe(ctx router.Context) error {
	profile, err := a.loadOwnProfile(ctx)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, hrProfileDetail(profile, profile.Account))
}

// UpdateMe is the self service flavor of UpdateProfile
func (a *HRController) UpdateMe(ctx router.Context) error {
	payload := new(UpdateHRProfilePayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	profile, err := a.loadOwnProfile(ctx)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	account, err := a.persistProfileUpdate(ctx, profile, payload)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, hrProfileDetail(profile, account))
}

// persistProfileUpdate is the nested write: account fields first, then the
// profile record, one transaction so partial updates never land
func (a *HRController) persistProfileUpdate(ctx router.Context, profile *HRProfile, payload *UpdateHRProfilePayload) (*Account, error) {
	err := a.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if payload.FirstName != nil || payload.LastName != nil {
			account := &Account{ID: profile.AccountID}
			if payload.FirstName != nil {
				account.FirstName = *payload.FirstName
			}
			if payload.LastName != nil {
				account.LastName = *payload.LastName
			}

			if _, err := a.Repo.Accounts().UpdateTx(c, tx, account, repository.UpdateByID(profile.AccountID.String())); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to update account fields")
			}
		}

		applyHRProfileUpdate(profile, payload)
		if _, err := a.Repo.HRProfiles().UpdateTx(c, tx, profile, repository.UpdateByID(profile.ID.String())); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update profile fields")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return a.Repo.Accounts().GetByIdentifier(ctx.Context(), profile.AccountID.String())
}

func (a *HRController) loadOwnProfile(ctx router.Context) (*HRProfile, error) {
	session, err := SessionFromContext(ctx, DefaultContextKey)
	if err != nil {
		return nil, err
	}

	accountID, err := session.GetAccountUUID()
	if err != nil {
		return nil, ErrInvalidToken.Clone()
	}

	profile, err := a.Repo.HRProfiles().GetByAccountID(ctx.Context(), accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.Clone()
		}
		return nil, err
	}

	if profile.Account == nil {
		if account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), accountID.String()); err == nil {
			profile.Account = account
		}
	}

	return profile, nil
}

func applyHRProfileUpdate(profile *HRProfile, payload *UpdateHRProfilePayload) {
	if payload.Bio != nil {
		profile.Bio = *payload.Bio
	}
	if payload.Phone != nil {
		profile.Phone = *payload.Phone
	}
	if payload.Company != nil {
		profile.Company = *payload.Company
	}
	if payload.Department != nil {
		profile.Department = *payload.Department
	}
	if payload.LinkedIn != nil {
		profile.LinkedIn = *payload.LinkedIn
	}
	if payload.Contacts != nil {
		profile.Contacts = *payload.Contacts
	}
	if payload.Website != nil {
		profile.Website = *payload.Website
	}
}

// DeleteProfile removes a recruiter. The profile row goes away and the
// account is soft deleted in the same transaction, an orphaned account
// could otherwise still log in.
func (a *HRController) DeleteProfile(ctx router.Context) error {
	profile, _, err := a.loadAuthorized(ctx, ActionDelete)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	err = a.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if err := a.Repo.HRProfiles().RemoveTx(c, tx, profile.ID); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to remove recruiter profile")
		}

		if err := a.Repo.Accounts().DeleteTx(c, tx, &Account{ID: profile.AccountID}); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete recruiter account")
		}

		return nil
	})
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "profile deleted",
	})
}

func (a *HRController) ToggleActive(ctx router.Context) error {
	profile, _, err := a.loadAuthorized(ctx, ActionManage)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	account, err := a.Repo.Accounts().ToggleActive(ctx.Context(), profile.AccountID)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":        profile.ID,
		"is_active": account.Active,
	})
}

func (a *HRController) ResetPassword(ctx router.Context) error {
	profile, _, err := a.loadAuthorized(ctx, ActionManage)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	handler := NewIssueRandomPasswordHandler(a.Repo).
		WithNotificationSink(a.Sink).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), IssueRandomPasswordMessage{
		AccountID: profile.AccountID,
	}); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "a new password has been sent",
	})
}

func (a *HRController) loadAuthorized(ctx router.Context, action Action) (*HRProfile, Principal, error) {
	session, err := SessionFromContext(ctx, DefaultContextKey)
	if err != nil {
		return nil, Principal{}, err
	}

	principal, err := PrincipalFromSession(session)
	if err != nil {
		return nil, Principal{}, err
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return nil, Principal{}, errors.New("invalid profile id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	profile, err := a.Repo.HRProfiles().GetByID(ctx.Context(), id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, Principal{}, ErrAccountNotFound.Clone()
		}
		return nil, Principal{}, err
	}

	if !a.Policy.AllowOwned(principal, action, ResourceHRProfiles, profile.AccountID) {
		return nil, Principal{}, ErrForbidden.Clone()
	}

	if profile.Account == nil {
		account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), profile.AccountID.String())
		if err == nil {
			profile.Account = account
		}
	}

	return profile, principal, nil
}

func hrProfileSummary(p *HRProfile) map[string]any {
	out := map[string]any{
		"id":         p.ID,
		"account_id": p.AccountID,
		"company":    p.Company,
		"department": p.Department,
	}
	if p.Account != nil {
		out["email"] = p.Account.Email
		out["full_name"] = p.Account.FullName()
		out["is_active"] = p.Account.Active
	}
	return out
}

func hrProfileDetail(p *HRProfile, account *Account) map[string]any {
	out := map[string]any{
		"id":         p.ID,
		"account_id": p.AccountID,
		"bio":        p.Bio,
		"phone":      p.Phone,
		"company":    p.Company,
		"department": p.Department,
		"linkedin":   p.LinkedIn,
		"contacts":   p.Contacts,
		"website":    p.Website,
		"created_at": p.CreatedAt,
	}
	if p.CreatedByID != nil {
		out["created_by_id"] = p.CreatedByID
	}
	if account != nil {
		out["account"] = SummarizeAccount(account)
	}
	return out
}
