package identity_test

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
)

func TestInitializePasswordResetHandler(t *testing.T) {
	ctx := context.Background()
	tokens := identity.NewSignedTokenService([]byte("secret"))

	account := &identity.Account{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		FirstName:    "Ada",
		Role:         identity.RoleApplicant,
		PasswordHash: "hash",
		Active:       true,
	}

	t.Run("known email dispatches a reset link", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}
		sink := &capturingSink{}

		repo.On("Accounts").Return(accounts)
		accounts.On("GetByIdentifier", mock.Anything, "ada@example.com").
			Return(account, nil).Once()

		var resp *identity.InitializePasswordResetResponse
		handler := identity.NewInitializePasswordResetHandler(repo, tokens).
			WithNotificationSink(sink).
			WithLogger(testLogger{}).
			WithBranding("TalentHub", "http://localhost:8080")

		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "ada@example.com",
			OnResponse: func(r *identity.InitializePasswordResetResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Sent)

		sent := sink.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ada@example.com", sent[0].To)
		assert.Contains(t, sent[0].Body, "password-reset")
		assert.Contains(t, sent[0].Body, identity.EncodeUID(account.ID))
	})

	t.Run("unknown email succeeds without sending", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}
		sink := &capturingSink{}

		repo.On("Accounts").Return(accounts)
		accounts.On("GetByIdentifier", mock.Anything, "ghost@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		var resp *identity.InitializePasswordResetResponse
		handler := identity.NewInitializePasswordResetHandler(repo, tokens).
			WithNotificationSink(sink).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "ghost@example.com",
			OnResponse: func(r *identity.InitializePasswordResetResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.False(t, resp.Sent)
		assert.Empty(t, sink.sent())
	})
}

func TestFinalizePasswordResetHandler(t *testing.T) {
	ctx := context.Background()
	tokens := identity.NewSignedTokenService([]byte("secret"))

	t.Run("valid token replaces the credential", func(t *testing.T) {
		account := &identity.Account{
			ID:           uuid.New(),
			Email:        "ada@example.com",
			Role:         identity.RoleApplicant,
			PasswordHash: "old-hash",
			Active:       true,
		}

		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, account.ID.String()).
			Return(account, nil).Once()
		accounts.On("ResetPasswordTx", mock.Anything, mock.Anything, account.ID, mock.MatchedBy(func(hash string) bool {
			return hash != "" && hash != "old-hash"
		})).Return(nil).Once()

		pair := tokens.Generate(account, identity.PurposePasswordReset)

		handler := identity.NewFinalizePasswordResetHandler(repo, tokens).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{
			UID:      pair.UID,
			Token:    pair.Token,
			Password: "brandNewPassword1",
		})
		require.NoError(t, err)

		accounts.AssertExpectations(t)
	})

	t.Run("token stops validating once the password changed", func(t *testing.T) {
		account := &identity.Account{
			ID:           uuid.New(),
			Email:        "ada@example.com",
			Role:         identity.RoleApplicant,
			PasswordHash: "old-hash",
			Active:       true,
		}

		pair := tokens.Generate(account, identity.PurposePasswordReset)
		account.PasswordHash = "new-hash"

		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, account.ID.String()).
			Return(account, nil).Once()

		handler := identity.NewFinalizePasswordResetHandler(repo, tokens).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{
			UID:      pair.UID,
			Token:    pair.Token,
			Password: "anotherNewPassword1",
		})
		assertTextCode(t, err, identity.TextCodeInvalidToken)

		accounts.AssertNotCalled(t, "ResetPasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("verification token cannot finalize a reset", func(t *testing.T) {
		account := &identity.Account{
			ID:           uuid.New(),
			Email:        "ada@example.com",
			Role:         identity.RoleApplicant,
			PasswordHash: "old-hash",
			Active:       true,
		}

		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, account.ID.String()).
			Return(account, nil).Once()

		pair := tokens.Generate(account, identity.PurposeEmailVerification)

		handler := identity.NewFinalizePasswordResetHandler(repo, tokens).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{
			UID:      pair.UID,
			Token:    pair.Token,
			Password: "brandNewPassword1",
		})
		assertTextCode(t, err, identity.TextCodeInvalidToken)
	})
}

func TestIssueRandomPasswordHandler(t *testing.T) {
	ctx := context.Background()

	account := &identity.Account{
		ID:           uuid.New(),
		Email:        "grace@example.com",
		FirstName:    "Grace",
		Role:         identity.RoleHR,
		PasswordHash: "old-hash",
		Active:       true,
	}

	t.Run("replaces the credential and notifies the owner", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}
		sink := &capturingSink{}

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, account.ID.String()).
			Return(account, nil).Once()
		accounts.On("SetPasswordTx", mock.Anything, mock.Anything, account.ID, mock.Anything).
			Return(nil).Once()

		handler := identity.NewIssueRandomPasswordHandler(repo).
			WithNotificationSink(sink).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, identity.IssueRandomPasswordMessage{AccountID: account.ID})
		require.NoError(t, err)

		sent := sink.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "grace@example.com", sent[0].To)
		assert.Contains(t, sent[0].Body, "temporary")
	})

	t.Run("non HR account is left untouched", func(t *testing.T) {
		applicant := &identity.Account{
			ID:           uuid.New(),
			Email:        "ada@example.com",
			FirstName:    "Ada",
			Role:         identity.RoleApplicant,
			PasswordHash: "old-hash",
			Active:       true,
		}

		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}
		sink := &capturingSink{}

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, applicant.ID.String()).
			Return(applicant, nil).Once()

		handler := identity.NewIssueRandomPasswordHandler(repo).
			WithNotificationSink(sink).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, identity.IssueRandomPasswordMessage{AccountID: applicant.ID})
		require.NoError(t, err)

		accounts.AssertNotCalled(t, "SetPasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		accounts.AssertNotCalled(t, "ResetPasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, sink.sent())
	})

	t.Run("credential swap does not claim mailbox proof", func(t *testing.T) {
		assert.NotContains(t, identity.SetAccountPasswordSQL, "is_email_verified")
		assert.Contains(t, identity.ResetAccountPasswordSQL, "is_email_verified")
	})

	t.Run("unknown account fails with not found", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		accounts := &MockAccounts{}

		missingID := uuid.New()

		repo.On("Accounts").Return(accounts)
		repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, missingID.String()).
			Return(nil, repository.NewRecordNotFound()).Once()

		handler := identity.NewIssueRandomPasswordHandler(repo).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.IssueRandomPasswordMessage{AccountID: missingID})
		assertTextCode(t, err, identity.TextCodeNotFound)
	})
}
