package identity_test

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
)

func TestRegisterEndpointIssuesSession(t *testing.T) {
	tokens := identity.NewSignedTokenService([]byte("secret"))

	repo := &MockRepositoryManager{}
	accounts := &MockAccounts{}
	profiles := &MockApplicantProfiles{}
	auther := &MockAuthenticator{}

	accountID := uuid.New()
	created := &identity.Account{
		ID:        accountID,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      identity.RoleApplicant,
		Provider:  identity.ProviderLocal,
		Allowed:   true,
		Active:    true,
	}

	repo.On("Accounts").Return(accounts)
	repo.On("ApplicantProfiles").Return(profiles)
	repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, "ada@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	accounts.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(created, nil).Once()
	profiles.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&identity.ApplicantProfile{ID: uuid.New(), AccountID: accountID}, nil).Once()

	auther.On("IssuePair", mock.Anything).
		Return(&identity.SessionPair{
			AccessToken:  "access-credential",
			RefreshToken: "refresh-credential",
			TokenType:    "bearer",
			ExpiresIn:    3600,
		}, nil).Once()

	controller := identity.NewAuthController(
		identity.WithControllerRepo(repo),
		identity.WithControllerAuthenticator(auther),
		identity.WithControllerTokens(tokens),
		identity.WithControllerLogger(testLogger{}),
	)

	var body map[string]any
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*identity.RegisterRequest)
		*payload = identity.RegisterRequest{
			FirstName:       "Ada",
			LastName:        "Lovelace",
			Email:           "ada@example.com",
			Password:        "securePassword123",
			ConfirmPassword: "securePassword123",
		}
	}).Return(nil)
	ctx.On("JSON", router.StatusCreated, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Register(ctx))
	require.NotNil(t, body)

	// signup doubles as the first login
	assert.Equal(t, "access-credential", body["access"])
	assert.Equal(t, "refresh-credential", body["refresh"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotNil(t, body["account"])

	auther.AssertExpectations(t)
	accounts.AssertExpectations(t)
}

func TestVerifyEmailLinkEndpoint(t *testing.T) {
	tokens := identity.NewSignedTokenService([]byte("secret"))

	account := &identity.Account{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		Role:         identity.RoleApplicant,
		PasswordHash: "hash",
		Active:       true,
	}
	pair := tokens.Generate(account, identity.PurposeEmailVerification)

	repo := &MockRepositoryManager{}
	accounts := &MockAccounts{}

	repo.On("Accounts").Return(accounts)
	repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	accounts.On("GetByIdentifierTx", mock.Anything, mock.Anything, account.ID.String()).
		Return(account, nil).Once()
	accounts.On("VerifyEmailTx", mock.Anything, mock.Anything, account.ID).
		Return(nil).Once()

	controller := identity.NewAuthController(
		identity.WithControllerRepo(repo),
		identity.WithControllerAuthenticator(&MockAuthenticator{}),
		identity.WithControllerTokens(tokens),
		identity.WithControllerLogger(testLogger{}),
	)

	var body map[string]any
	ctx := router.NewMockContext()
	ctx.QueriesM["uid"] = pair.UID
	ctx.QueriesM["token"] = pair.Token
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.VerifyEmailLink(ctx))
	require.NotNil(t, body)
	assert.Equal(t, "email verified", body["detail"])

	accounts.AssertExpectations(t)
}

func TestHRLoginIncludesProfile(t *testing.T) {
	tokens := identity.NewSignedTokenService([]byte("secret"))

	accountID := uuid.New()
	account := &identity.Account{
		ID:     accountID,
		Email:  "grace@example.com",
		Role:   identity.RoleHR,
		Active: true,
	}
	profile := &identity.HRProfile{
		ID:        uuid.New(),
		AccountID: accountID,
		Company:   "TalentHub",
	}

	repo := &MockRepositoryManager{}
	accounts := &MockAccounts{}
	hrProfiles := &MockHRProfiles{}
	auther := &MockAuthenticator{}

	repo.On("Accounts").Return(accounts)
	repo.On("HRProfiles").Return(hrProfiles)

	auther.On("Login", mock.Anything, "grace@example.com", "securePassword123").
		Return(&identity.SessionPair{
			AccessToken:  "access-credential",
			RefreshToken: "refresh-credential",
			TokenType:    "bearer",
			ExpiresIn:    3600,
		}, nil).Once()
	auther.On("SessionFromToken", "access-credential").
		Return(&identity.SessionObject{
			AccountID: accountID.String(),
			Role:      identity.RoleHR,
		}, nil).Once()

	accounts.On("GetByIdentifier", mock.Anything, accountID.String()).
		Return(account, nil).Once()
	hrProfiles.On("GetByAccountID", mock.Anything, accountID).
		Return(profile, nil).Once()

	controller := identity.NewAuthController(
		identity.WithControllerRepo(repo),
		identity.WithControllerAuthenticator(auther),
		identity.WithControllerTokens(tokens),
		identity.WithControllerLogger(testLogger{}),
	)

	var body map[string]any
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*identity.LoginRequest)
		*payload = identity.LoginRequest{
			Email:    "grace@example.com",
			Password: "securePassword123",
		}
	}).Return(nil)
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.HRLogin(ctx))
	require.NotNil(t, body)

	assert.Equal(t, "access-credential", body["access"])
	require.NotNil(t, body["profile"])
	assert.Equal(t, "TalentHub", body["profile"].(map[string]any)["company"])

	auther.AssertExpectations(t)
	hrProfiles.AssertExpectations(t)
}

func TestDeleteProfileRemovesAccount(t *testing.T) {
	tokens := identity.NewSignedTokenService([]byte("secret"))

	adminID := uuid.New()
	accountID := uuid.New()
	profileID := uuid.New()

	profile := &identity.HRProfile{
		ID:        profileID,
		AccountID: accountID,
		Account: &identity.Account{
			ID:    accountID,
			Email: "grace@example.com",
			Role:  identity.RoleHR,
		},
	}

	repo := &MockRepositoryManager{}
	accounts := &MockAccounts{}
	hrProfiles := &MockHRProfiles{}

	repo.On("Accounts").Return(accounts)
	repo.On("HRProfiles").Return(hrProfiles)
	repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	hrProfiles.On("GetByID", mock.Anything, profileID.String()).
		Return(profile, nil).Once()
	hrProfiles.On("RemoveTx", mock.Anything, mock.Anything, profileID).
		Return(nil).Once()
	accounts.On("DeleteTx", mock.Anything, mock.Anything, mock.MatchedBy(func(a *identity.Account) bool {
		return a.ID == accountID
	})).Return(nil).Once()

	controller := identity.NewHRController(
		identity.WithHRRepo(repo),
		identity.WithHRTokens(tokens),
		identity.WithHRLogger(testLogger{}),
	)

	var body map[string]any
	ctx := router.NewMockContext()
	ctx.ParamsM["id"] = profileID.String()
	ctx.LocalsMock[identity.DefaultContextKey] = &identity.SessionObject{
		AccountID: adminID.String(),
		Role:      identity.RoleAdmin,
	}
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.DeleteProfile(ctx))
	require.NotNil(t, body)
	assert.Equal(t, "profile deleted", body["detail"])

	// the account goes away with the profile, otherwise it could still
	// log in
	hrProfiles.AssertExpectations(t)
	accounts.AssertExpectations(t)
}
