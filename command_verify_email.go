package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

// VerifyEmailHandler marks an account's email as verified after validating
// the purpose bound token. Verifying twice is a no-op even though the
// first verification rotated the security stamp.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	tokens *SignedTokenService
	logger Logger
}

func NewVerifyEmailHandler(repo RepositoryManager, tokens *SignedTokenService) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
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
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
		}

		// Verification rotates the security stamp, so a revisited link
		// carries a token minted against the old stamp. Short circuit
		// before validating to keep the second visit a no-op.
		if account.EmailVerified {
			return nil
		}

		if err := h.tokens.Validate(account, event.Token, PurposeEmailVerification); err != nil {
			return err
		}

		if err := h.repo.Accounts().VerifyEmailTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email verification failed")
	}

	return nil
}
