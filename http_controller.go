package identity

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

// AuthController serves the public identity endpoints as a JSON API
type AuthController struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Auther     Authenticator
	Tokens     *SignedTokenService
	Federation *FederationAdapter
	Sink       NotificationSink
	Activity   ActivitySink
	AppName    string
	BaseURL    string
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Sink:     noopNotificationSink{},
		Activity: noopActivitySink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing SignedTokenService in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerTokens(tokens *SignedTokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerFederation(adapter *FederationAdapter) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Federation = adapter
		return c
	}
}

func WithControllerNotifications(sink NotificationSink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sink = normalizeNotificationSink(sink)
		return c
	}
}

func WithControllerActivity(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerBranding(appName, baseURL string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.AppName = appName
		c.BaseURL = baseURL
		return c
	}
}

// RegisterRoutes mounts the public auth surface. The me endpoint expects
// the RequireAuth middleware, everything else is anonymous.
func (a *AuthController) RegisterRoutes(group RouteRegistrar, mw *AuthMiddleware) {
	group.Post("/register", a.Register)
	group.Post("/login", a.Login)
	group.Post("/hr/login", a.HRLogin)
	group.Post("/token/refresh", a.RefreshToken)
	group.Post("/logout", a.Logout)
	group.Post("/verify-email", a.VerifyEmail)
	group.Get("/verify-email", a.VerifyEmailLink)
	group.Post("/password-reset", a.PasswordResetRequest)
	group.Post("/password-reset/confirm", a.PasswordResetConfirm)
	group.Post("/google", a.GoogleLogin)
	group.Get("/me", a.Me, mw.RequireAuth())
	group.Get("/me/profile", a.GetMyProfile, mw.RequireAuth())
	group.Patch("/me/profile", a.UpdateMyProfile, mw.RequireAuth())
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	return a.login(ctx, "")
}

// HRLogin authenticates recruiters only. Valid credentials on a non
// recruiter account come back as forbidden, not unauthorized, the caller
// proved who they are but may not use this door.
func (a *AuthController) HRLogin(ctx router.Context) error {
	return a.login(ctx, RoleHR)
}

func (a *AuthController) login(ctx router.Context, requiredRole AccountRole) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= IDENTITY LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	session, err := a.Auther.SessionFromToken(pair.AccessToken)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	if requiredRole != "" && session.GetRole() != requiredRole {
		return RespondError(ctx, a.Logger, ErrForbidden.Clone())
	}

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), session.GetAccountID())
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	response := map[string]any{
		"access":     pair.AccessToken,
		"refresh":    pair.RefreshToken,
		"token_type": pair.TokenType,
		"expires_in": pair.ExpiresIn,
		"account":    SummarizeAccount(account),
	}

	// recruiters get their profile with the session so the client does
	// not need a second round trip
	if requiredRole == RoleHR {
		profile, err := a.Repo.HRProfiles().GetByAccountID(ctx.Context(), account.ID)
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return RespondError(ctx, a.Logger, err)
			}
			a.Logger.Info("recruiter login without provisioned profile", "account_id", account.ID.String())
		} else {
			response["profile"] = hrProfileSummary(profile)
		}
	}

	return ctx.JSON(router.StatusOK, response)
}

// RegisterRequest is the applicant signup payload
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(8, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	var resp *RegisterAccountResponse
	msg := RegisterAccountMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		OnResponse: func(r *RegisterAccountResponse) {
			resp = r
		},
	}

	handler := NewRegisterAccountHandler(a.Repo, a.Tokens).
		WithNotificationSink(a.Sink).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithBranding(a.AppName, a.BaseURL)

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	// signup doubles as the first login, the caller walks away with a
	// usable session alongside the account
	pair, err := a.issuePairFor(resp.Account)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"access":     pair.AccessToken,
		"refresh":    pair.RefreshToken,
		"token_type": pair.TokenType,
		"expires_in": pair.ExpiresIn,
		"account":    SummarizeAccount(resp.Account),
	})
}

// RefreshRequest carries a refresh credential
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Refresh, validation.Required),
	)
}

func (a *AuthController) RefreshToken(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.Refresh)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"access":     pair.AccessToken,
		"refresh":    pair.RefreshToken,
		"token_type": pair.TokenType,
		"expires_in": pair.ExpiresIn,
	})
}

// Logout revokes the submitted refresh credential. Revoking twice still
// returns 200.
func (a *AuthController) Logout(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	if err := a.Auther.Logout(ctx.Context(), payload.Refresh); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "logged out",
	})
}

// VerifyEmailRequest carries the out of band verification credential
type VerifyEmailRequest struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	payload := new(VerifyEmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	return a.verifyEmail(ctx, payload)
}

// VerifyEmailLink serves the link embedded in the verification email,
// same semantics as the POST endpoint with the credential in the query
// string.
func (a *AuthController) VerifyEmailLink(ctx router.Context) error {
	payload := &VerifyEmailRequest{
		UID:   ctx.Query("uid"),
		Token: ctx.Query("token"),
	}

	return a.verifyEmail(ctx, payload)
}

func (a *AuthController) verifyEmail(ctx router.Context, payload *VerifyEmailRequest) error {
	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	handler := NewVerifyEmailHandler(a.Repo, a.Tokens).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), VerifyEmailMessage{
		UID:   payload.UID,
		Token: payload.Token,
	}); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "email verified",
	})
}

// PasswordResetRequestPayload starts a reset flow
type PasswordResetRequestPayload struct {
	Email string `json:"email"`
}

func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// PasswordResetRequest answers the same way for known and unknown emails
func (a *AuthController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Tokens).
		WithNotificationSink(a.Sink).
		WithLogger(a.Logger).
		WithBranding(a.AppName, a.BaseURL)

	if err := handler.Execute(ctx.Context(), InitializePasswordResetMessage{
		Email: payload.Email,
	}); err != nil {
		a.Logger.Error("password reset initialize failed", "error", err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "if the email exists, a reset link has been sent",
	})
}

// PasswordResetConfirmPayload finalizes a reset flow
type PasswordResetConfirmPayload struct {
	UID             string `json:"uid"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r PasswordResetConfirmPayload) Validate() error {
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

func (a *AuthController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	handler := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), FinalizePasswordResetMessage{
		UID:      payload.UID,
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"detail": "password has been reset",
	})
}

// GoogleLoginRequest carries the provider issued ID token
type GoogleLoginRequest struct {
	IDToken string `json:"id_token"`
}

func (r GoogleLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

func (a *AuthController) GoogleLogin(ctx router.Context) error {
	if a.Federation == nil {
		return RespondError(ctx, a.Logger, ErrUpstreamUnavailable.Clone())
	}

	payload := new(GoogleLoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, errors.Wrap(err, errors.CategoryBadInput, "could not parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return RespondValidationError(ctx, err)
	}

	result, err := a.Federation.Authenticate(ctx.Context(), payload.IDToken)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	pair, err := a.issuePairFor(result.Account)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	status := router.StatusOK
	if result.Created {
		status = router.StatusCreated
	}

	return ctx.JSON(status, map[string]any{
		"access":     pair.AccessToken,
		"refresh":    pair.RefreshToken,
		"token_type": pair.TokenType,
		"expires_in": pair.ExpiresIn,
		"created":    result.Created,
		"account":    SummarizeAccount(result.Account),
	})
}

// Me returns the authenticated caller's account
func (a *AuthController) Me(ctx router.Context) error {
	session, err := SessionFromContext(ctx, DefaultContextKey)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), session.GetAccountID())
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": SummarizeAccount(account),
	})
}

// UpdateApplicantProfilePayload updates the caller's own profile
type UpdateApplicantProfilePayload struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Phone     *string `json:"phone"`
	LinkedIn  *string `json:"linkedin"`
	Contacts  *string `json:"contacts"`
	Website   *string `json:"website"`
}

func (r UpdateApplicantProfilePayload) Validate() error {
	phone := ""
	if r.Phone != nil {
		phone = *r.Phone
	}
	return validation.Validate(phone, validation.By(ValidatePhoneNumber))
}

func (a *AuthController) GetMyProfile(ctx router.Context) error {
	session, err := SessionFromContext(ctx, DefaultContextKey)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	accountID, err := session.GetAccountUUID()
	if err != nil {
		return RespondError(ctx, a.Logger, ErrInvalidToken.Clone())
	}

	profile, err := a.Repo.ApplicantProfiles().GetByAccountID(ctx.Context(), accountID)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, applicantProfileDetail(profile))
}

func (a *AuthController) UpdateMyProfile(ctx router.Context) error {
	payload := new(UpdateApplicantProfilePayload)

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

	accountID, err := session.GetAccountUUID()
	if err != nil {
		return RespondError(ctx, a.Logger, ErrInvalidToken.Clone())
	}

	profile, err := a.Repo.ApplicantProfiles().GetByAccountID(ctx.Context(), accountID)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	err = a.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if payload.FirstName != nil || payload.LastName != nil {
			account := &Account{ID: accountID}
			if payload.FirstName != nil {
				account.FirstName = *payload.FirstName
			}
			if payload.LastName != nil {
				account.LastName = *payload.LastName
			}

			if _, err := a.Repo.Accounts().UpdateTx(c, tx, account, repository.UpdateByID(accountID.String())); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to update account fields")
			}
		}

		if payload.Bio != nil {
			profile.Bio = *payload.Bio
		}
		if payload.Phone != nil {
			profile.Phone = *payload.Phone
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

		if _, err := a.Repo.ApplicantProfiles().UpdateTx(c, tx, profile, repository.UpdateByID(profile.ID.String())); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update profile fields")
		}

		return nil
	})
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, applicantProfileDetail(profile))
}

func applicantProfileDetail(p *ApplicantProfile) map[string]any {
	out := map[string]any{
		"id":         p.ID,
		"account_id": p.AccountID,
		"bio":        p.Bio,
		"phone":      p.Phone,
		"linkedin":   p.LinkedIn,
		"contacts":   p.Contacts,
		"website":    p.Website,
		"created_at": p.CreatedAt,
	}
	if p.Account != nil {
		out["account"] = SummarizeAccount(p.Account)
	}
	return out
}

func (a *AuthController) issuePairFor(account *Account) (*SessionPair, error) {
	issuer, ok := a.Auther.(PairIssuer)
	if !ok {
		return nil, errors.New("authenticator cannot issue direct sessions", errors.CategoryInternal)
	}
	return issuer.IssuePair(NewIdentityFromAccount(account))
}
