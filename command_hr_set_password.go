package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type HRSetPasswordMessage struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e HRSetPasswordMessage) Type() string { return "hr.set_password" }

// HRSetPasswordHandler lets a provisioned recruiter pick their first
// password. The update verifies and activates the account in the same
// statement. Tokens issued before the password was set stop validating
// once the credential lands, re-running the link a second time fails.
type HRSetPasswordHandler struct {
	repo   RepositoryManager
	tokens *SignedTokenService
	logger Logger
}

func NewHRSetPasswordHandler(repo RepositoryManager, tokens *SignedTokenService) *HRSetPasswordHandler {
	return &HRSetPasswordHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (h *HRSetPasswordHandler) WithLogger(logger Logger) *HRSetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *HRSetPasswordHandler) Execute(ctx context.Context, event HRSetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recruiter password set",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *HRSetPasswordHandler) execute(ctx context.Context, event HRSetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	accountID, err := DecodeUID(event.UID)
	if err != nil {
		return ErrInvalidToken.Clone()
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, accountID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken.Clone()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}

		if account.Role != RoleHR {
			return ErrInvalidToken.Clone()
		}

		if err := h.tokens.Validate(account, event.Token, PurposeHRPasswordSet); err != nil {
			return err
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		if err := h.repo.Accounts().ActivateWithPasswordTx(ctx, tx, account.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set recruiter password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "recruiter password set failed")
	}

	return nil
}
