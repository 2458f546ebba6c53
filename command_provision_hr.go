package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ProvisionHRMessage struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	CreatedBy  uuid.UUID
	OnResponse func(resp *ProvisionHRResponse)
}

func (e ProvisionHRMessage) Type() string { return "hr.provision" }

type ProvisionHRResponse struct {
	Account *Account
	Profile *HRProfile
}

// ProvisionHRHandler creates a recruiter account on behalf of an admin. The
// account starts active and staff flagged but carries no usable credential,
// the recruiter sets one through the welcome link before first login.
type ProvisionHRHandler struct {
	repo    RepositoryManager
	tokens  *SignedTokenService
	sink    NotificationSink
	logger  Logger
	appName string
	baseURL string
}

func NewProvisionHRHandler(repo RepositoryManager, tokens *SignedTokenService) *ProvisionHRHandler {
	return &ProvisionHRHandler{
		repo:   repo,
		tokens: tokens,
		sink:   noopNotificationSink{},
		logger: defLogger{},
	}
}

func (h *ProvisionHRHandler) WithNotificationSink(sink NotificationSink) *ProvisionHRHandler {
	h.sink = normalizeNotificationSink(sink)
	return h
}

func (h *ProvisionHRHandler) WithLogger(logger Logger) *ProvisionHRHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ProvisionHRHandler) WithBranding(appName, baseURL string) *ProvisionHRHandler {
	h.appName = appName
	h.baseURL = baseURL
	return h
}

func (h *ProvisionHRHandler) Execute(ctx context.Context, event ProvisionHRMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recruiter provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ProvisionHRHandler) execute(ctx context.Context, event ProvisionHRMessage) error {
	resp := &ProvisionHRResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if existing, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, event.Email); err == nil && existing != nil {
			return ErrEmailConflict.Clone()
		} else if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		account := &Account{
			Email:     event.Email,
			FirstName: event.FirstName,
			LastName:  event.LastName,
			Role:      RoleHR,
			Provider:  ProviderLocal,
			Allowed:   true,
			Active:    true,
			Staff:     true,
		}

		var err error
		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create recruiter account")
		}

		createdBy := event.CreatedBy
		profile := &HRProfile{
			AccountID:  account.ID,
			Company:    event.Company,
			Department: event.Department,
			Phone:      event.Phone,
		}
		if createdBy != uuid.Nil {
			profile.CreatedByID = &createdBy
		}

		if profile, err = h.repo.HRProfiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create recruiter profile")
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "recruiter provisioning transaction failed")
	}

	h.sendWelcome(ctx, resp.Account)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ProvisionHRHandler) sendWelcome(ctx context.Context, account *Account) {
	pair := h.tokens.Generate(account, PurposeHRPasswordSet)

	body, err := RenderNotification("hr_welcome", NotificationContext{
		Name:    account.FullName(),
		AppName: h.appName,
		BaseURL: h.baseURL,
		UID:     pair.UID,
		Token:   pair.Token,
	})
	if err != nil {
		h.logger.Error("failed to render recruiter welcome message", "error", err)
		return
	}

	if err := h.sink.Send(ctx, Notification{
		To:      account.Email,
		Subject: "Your recruiter account",
		Body:    body,
	}); err != nil {
		h.logger.Error("failed to send recruiter welcome message", "error", err)
	}
}
