package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type IssueRandomPasswordMessage struct {
	AccountID  uuid.UUID `json:"account_id"`
	OnResponse func(resp *IssueRandomPasswordResponse)
}

func (e IssueRandomPasswordMessage) Type() string { return "account.issue_random_password" }

type IssueRandomPasswordResponse struct {
	Account *Account
}

// IssueRandomPasswordHandler replaces a recruiter's credential with a
// random one and notifies the owner. Used by admins to lock out a lost
// credential while keeping the account usable. Accounts outside the HR
// role are left untouched. The swap does not mark the email verified,
// no mailbox proof was presented.
type IssueRandomPasswordHandler struct {
	repo   RepositoryManager
	sink   NotificationSink
	logger Logger
}

func NewIssueRandomPasswordHandler(repo RepositoryManager) *IssueRandomPasswordHandler {
	return &IssueRandomPasswordHandler{
		repo:   repo,
		sink:   noopNotificationSink{},
		logger: defLogger{},
	}
}

func (h *IssueRandomPasswordHandler) WithNotificationSink(sink NotificationSink) *IssueRandomPasswordHandler {
	h.sink = normalizeNotificationSink(sink)
	return h
}

func (h *IssueRandomPasswordHandler) WithLogger(logger Logger) *IssueRandomPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *IssueRandomPasswordHandler) Execute(ctx context.Context, event IssueRandomPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during random password issue",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *IssueRandomPasswordHandler) execute(ctx context.Context, event IssueRandomPasswordMessage) error {
	resp := &IssueRandomPasswordResponse{}
	password := RandomPassword()

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, event.AccountID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound.Clone()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if account.Role != RoleHR {
			h.logger.Debug("random password skipped for non HR account",
				"account_id", account.ID.String(),
				"role", account.Role,
			)
			return nil
		}

		passwordHash, err := HashPassword(password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash random password")
		}

		if err := h.repo.Accounts().SetPasswordTx(ctx, tx, account.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace account credential")
		}

		resp.Account = account
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "random password issue failed")
	}

	if resp.Account != nil {
		h.notify(ctx, resp.Account, password)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *IssueRandomPasswordHandler) notify(ctx context.Context, account *Account, password string) {
	body, err := RenderNotification("random_password", NotificationContext{
		Name:     account.FullName(),
		Password: password,
	})
	if err != nil {
		h.logger.Error("failed to render password notice", "error", err)
		return
	}

	if err := h.sink.Send(ctx, Notification{
		To:      account.Email,
		Subject: "Your password was reset",
		Body:    body,
	}); err != nil {
		h.logger.Error("failed to send password notice", "error", err)
	}
}
