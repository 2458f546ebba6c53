package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetResponse struct {
	// Sent is internal only. The HTTP layer must answer the same way
	// whether or not the email matched an account.
	Sent bool
}

// InitializePasswordResetHandler mints a reset token for the account behind
// the email and dispatches it. Unknown emails succeed silently so the
// endpoint cannot be used to enumerate accounts.
type InitializePasswordResetHandler struct {
	repo    RepositoryManager
	tokens  *SignedTokenService
	sink    NotificationSink
	logger  Logger
	appName string
	baseURL string
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *SignedTokenService) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		tokens: tokens,
		sink:   noopNotificationSink{},
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotificationSink(sink NotificationSink) *InitializePasswordResetHandler {
	h.sink = normalizeNotificationSink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) WithBranding(appName, baseURL string) *InitializePasswordResetHandler {
	h.appName = appName
	h.baseURL = baseURL
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	pair := h.tokens.Generate(account, PurposePasswordReset)

	body, err := RenderNotification("password_reset", NotificationContext{
		Name:    account.FullName(),
		AppName: h.appName,
		BaseURL: h.baseURL,
		UID:     pair.UID,
		Token:   pair.Token,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render password reset message")
	}

	if err := h.sink.Send(ctx, Notification{
		To:      account.Email,
		Subject: "Reset your password",
		Body:    body,
	}); err != nil {
		h.logger.Error("failed to send password reset message", "error", err)
	}

	resp.Sent = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
