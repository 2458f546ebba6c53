package identity

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// GoogleIssuerURL is the discovery issuer for Google sign in
const GoogleIssuerURL = "https://accounts.google.com"

// FederatedIdentity is the provider asserted view of a user
type FederatedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

// IDTokenVerifier abstracts the provider verification step so tests can
// assert federation flows without a live issuer.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawToken string) (*FederatedIdentity, error)
}

// GoogleVerifier validates Google issued ID tokens through OIDC discovery
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers the Google issuer and builds a verifier bound
// to the given client id
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is not configured", errors.CategoryInternal).
			WithTextCode(TextCodeUpstream)
	}

	provider, err := oidc.NewProvider(ctx, GoogleIssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to discover google issuer").
			WithTextCode(TextCodeUpstream)
	}

	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, rawToken string) (*FederatedIdentity, error) {
	idToken, err := g.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, ErrInvalidToken.Clone()
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, ErrInvalidToken.Clone()
	}

	if claims.Email == "" {
		return nil, ErrInvalidToken.Clone()
	}

	return &FederatedIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
	}, nil
}

// FederationResult is the outcome of a federated sign in
type FederationResult struct {
	Account *Account
	Created bool
}

// FederationAdapter exchanges a provider ID token for a local account,
// creating the account and its profile on first sign in.
type FederationAdapter struct {
	verifier IDTokenVerifier
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewFederationAdapter(verifier IDTokenVerifier, repo RepositoryManager) *FederationAdapter {
	return &FederationAdapter{
		verifier: verifier,
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (f *FederationAdapter) WithLogger(logger Logger) *FederationAdapter {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithActivitySink registers an audit sink for federated sign in events
func (f *FederationAdapter) WithActivitySink(sink ActivitySink) *FederationAdapter {
	f.activity = normalizeActivitySink(sink)
	return f
}

// Authenticate verifies the raw provider token and resolves it to a local
// account. Accounts created here are applicant role, verified, and active,
// the provider already proved email ownership.
func (f *FederationAdapter) Authenticate(ctx context.Context, rawToken string) (*FederationResult, error) {
	if f.verifier == nil {
		return nil, ErrUpstreamUnavailable.Clone()
	}

	fid, err := f.verifier.VerifyIDToken(ctx, rawToken)
	if err != nil {
		f.logger.Error("federation token verification failed", "error", err)
		return nil, err
	}

	result := &FederationResult{}

	err = f.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account := &Account{
			Email:         fid.Email,
			FirstName:     fid.GivenName,
			LastName:      fid.FamilyName,
			Role:          RoleApplicant,
			Provider:      ProviderGoogle,
			EmailVerified: true,
			Allowed:       true,
			Active:        true,
		}

		account, created, err := f.repo.Accounts().ResolveOrCreateTx(ctx, tx, account)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to resolve federated account")
		}

		if created {
			profile := &ApplicantProfile{AccountID: account.ID}
			if _, err := f.repo.ApplicantProfiles().CreateTx(ctx, tx, profile); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to create applicant profile")
			}
		}

		result.Account = account
		result.Created = created
		return nil
	})

	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "federated sign in failed")
	}

	if !result.Account.Active {
		return nil, ErrAccountInactive.Clone()
	}

	if err := f.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventFederatedLogin,
		AccountID:  result.Account.ID.String(),
		Metadata:   map[string]any{"created": result.Created},
		OccurredAt: time.Now(),
	}); err != nil {
		f.logger.Error("activity sink record failed", "error", err)
	}

	return result, nil
}
