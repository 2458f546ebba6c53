package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool
	OnResponse func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account *Account
	Profile *ApplicantProfile
}

// RegisterAccountHandler creates an applicant account with its profile and
// sends the verification message. New accounts are active immediately,
// verification is advisory.
type RegisterAccountHandler struct {
	repo     RepositoryManager
	tokens   *SignedTokenService
	sink     NotificationSink
	activity ActivitySink
	logger   Logger
	appName  string
	baseURL  string
}

func NewRegisterAccountHandler(repo RepositoryManager, tokens *SignedTokenService) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		tokens:   tokens,
		sink:     noopNotificationSink{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *RegisterAccountHandler) WithNotificationSink(sink NotificationSink) *RegisterAccountHandler {
	h.sink = normalizeNotificationSink(sink)
	return h
}

// WithActivitySink registers an audit sink for registration events
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBranding sets the values interpolated into outgoing messages
func (h *RegisterAccountHandler) WithBranding(appName, baseURL string) *RegisterAccountHandler {
	h.appName = appName
	h.baseURL = baseURL
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	resp := &RegisterAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if existing, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, event.Email); err == nil && existing != nil {
			return ErrEmailConflict.Clone()
		} else if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account := &Account{
			Email:        event.Email,
			FirstName:    event.FirstName,
			LastName:     event.LastName,
			Role:         RoleApplicant,
			Provider:     ProviderLocal,
			PasswordHash: hash,
			Allowed:      true,
			Active:       true,
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		profile := &ApplicantProfile{AccountID: account.ID}
		if profile, err = h.repo.ApplicantProfiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create applicant profile")
		}

		resp.Account = account
		resp.Profile = profile
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	h.sendVerification(ctx, resp.Account)

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		AccountID:  resp.Account.ID.String(),
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Error("activity sink record failed", "error", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterAccountHandler) sendVerification(ctx context.Context, account *Account) {
	pair := h.tokens.Generate(account, PurposeEmailVerification)

	body, err := RenderNotification("verification", NotificationContext{
		Name:    account.FullName(),
		AppName: h.appName,
		BaseURL: h.baseURL,
		UID:     pair.UID,
		Token:   pair.Token,
	})
	if err != nil {
		h.logger.Error("failed to render verification message", "error", err)
		return
	}

	if err := h.sink.Send(ctx, Notification{
		To:      account.Email,
		Subject: "Confirm your email address",
		Body:    body,
	}); err != nil {
		h.logger.Error("failed to send verification message", "error", err)
	}
}
