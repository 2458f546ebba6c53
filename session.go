package identity

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionPair is the credential pair handed to clients after a successful
// authentication
type SessionPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

var _ Session = &SessionObject{}

// SessionObject is the decoded view of an access credential
type SessionObject struct {
	AccountID      string     `json:"account_id,omitempty"`
	Role           string     `json:"role,omitempty"`
	Audience       []string   `json:"audience,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	TokenID        string     `json:"token_id,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetAccountID() string {
	return s.AccountID
}

func (s *SessionObject) GetAccountUUID() (uuid.UUID, error) {
	return uuid.Parse(s.AccountID)
}

func (s *SessionObject) GetRole() string {
	return s.Role
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetTokenID() string {
	return s.TokenID
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"account=%s role=%s aud=%v iss=%s iat=%s",
		s.AccountID,
		s.Role,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

var _ Authenticator = &SessionIssuer{}

// SessionIssuer verifies credentials against the identity provider and
// mints HS256 access and refresh pairs. Refresh credentials rotate on use
// and land on the blacklist, so a stolen refresh token dies with its first
// legitimate renewal.
type SessionIssuer struct {
	provider   IdentityProvider
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   []string
	blacklist  RevokedTokenCache
	decorator  ClaimsDecorator
	activity   ActivitySink
	logger     Logger
	now        func() time.Time
}

// NewSessionIssuer returns a SessionIssuer backed by the given provider
func NewSessionIssuer(provider IdentityProvider, opts Config) *SessionIssuer {
	return &SessionIssuer{
		provider:   provider,
		signingKey: []byte(opts.GetSigningKey()),
		accessTTL:  time.Duration(opts.GetTokenExpiration()) * time.Minute,
		refreshTTL: time.Duration(opts.GetRefreshExpiration()) * time.Hour,
		issuer:     opts.GetIssuer(),
		audience:   opts.GetAudience(),
		blacklist:  NewInMemoryRevokedTokenCache(),
		decorator:  noopClaimsDecorator{},
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (s *SessionIssuer) WithLogger(logger Logger) *SessionIssuer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBlacklist swaps the revocation store, e.g. for a shared cache
func (s *SessionIssuer) WithBlacklist(cache RevokedTokenCache) *SessionIssuer {
	if cache != nil {
		s.blacklist = cache
	}
	return s
}

// WithClaimsDecorator registers a decorator invoked before credentials are
// signed. Decorators may only write extension claims.
func (s *SessionIssuer) WithClaimsDecorator(d ClaimsDecorator) *SessionIssuer {
	s.decorator = normalizeClaimsDecorator(d)
	return s
}

// WithActivitySink registers an audit sink for login and session events
func (s *SessionIssuer) WithActivitySink(sink ActivitySink) *SessionIssuer {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the clock, used in tests
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the credentials and issues a fresh pair. Bad credentials
// and unknown emails are indistinguishable to the caller.
func (s *SessionIssuer) Login(ctx context.Context, identifier, password string) (*SessionPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"identifier": identifier},
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrAuthFailed
	}

	if !identity.IsActive() {
		s.logger.Error("Login blocked, account inactive", "account", identity.ID())
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: identity.ID(),
			Metadata:  map[string]any{"reason": "inactive"},
		})
		return nil, ErrAccountInactive
	}

	pair, err := s.IssuePair(identity)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: identity.ID(),
	})

	return pair, nil
}

// IssuePair mints an access and refresh pair for an already verified
// identity, e.g. after federation
func (s *SessionIssuer) IssuePair(identity Identity) (*SessionPair, error) {
	access, err := s.mint(identity, TokenUseAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := s.mint(identity, TokenUseRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &SessionPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Refresh exchanges a live refresh credential for a new pair. The consumed
// credential is revoked so it cannot be replayed.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string) (*SessionPair, error) {
	claims, err := s.parseClaims(refreshToken, TokenUseRefresh)
	if err != nil {
		return nil, err
	}

	if s.blacklist.IsRevoked(claims.TokenID()) {
		s.logger.Error("Refresh rejected, token revoked", "jti", claims.TokenID())
		return nil, ErrSessionRevoked
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.AccountID())
	if err != nil {
		s.logger.Error("Refresh identity lookup failed", "error", err)
		return nil, ErrInvalidToken
	}

	if !identity.IsActive() {
		return nil, ErrAccountInactive
	}

	if err := s.blacklist.Add(claims.TokenID(), claims.Expires()); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to revoke refresh token")
	}

	pair, err := s.IssuePair(identity)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSessionRefreshed,
		AccountID: identity.ID(),
	})

	return pair, nil
}

// Logout revokes the refresh credential. Revoking an already revoked
// credential succeeds.
func (s *SessionIssuer) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseClaims(refreshToken, TokenUseRefresh)
	if err != nil {
		return err
	}

	if err := s.blacklist.Add(claims.TokenID(), claims.Expires()); err != nil {
		return err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSessionRevoked,
		AccountID: claims.AccountID(),
	})

	return nil
}

// SessionFromToken decodes an access credential into a Session. Refresh
// credentials are rejected here so they cannot be used against the API.
func (s *SessionIssuer) SessionFromToken(raw string) (Session, error) {
	claims, err := s.parseClaims(raw, TokenUseAccess)
	if err != nil {
		return nil, err
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		AccountID:      claims.AccountID(),
		Role:           claims.Role(),
		Audience:       claims.RegisteredClaims.Audience,
		Issuer:         claims.RegisteredClaims.Issuer,
		TokenID:        claims.TokenID(),
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

func (s *SessionIssuer) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetAccountID())
	if err != nil {
		s.logger.Error("IdentityFromSession lookup failed", "error", err)
		return nil, err
	}
	return identity, nil
}

func (s *SessionIssuer) mint(identity Identity, use TokenUse, ttl time.Duration) (string, error) {
	now := s.now()

	var aud jwt.ClaimStrings
	if len(s.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(s.audience))
		copy(aud, s.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:         identity.ID(),
		AccountRole: identity.Role(),
		TokenUse:    use,
	}

	snapshot := captureImmutableClaims(claims)

	if err := s.decorator.Decorate(identity, claims); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "claims decoration failed")
	}

	if err := snapshot.validate(claims); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

func (s *SessionIssuer) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record failed", "event", string(event.EventType), "error", err)
	}
}

func (s *SessionIssuer) parseClaims(raw string, expectedUse TokenUse) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(s.now))
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}
	if len(s.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(s.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("session parse encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAuthFailed.Clone()
		}
		return nil, ErrInvalidToken.Clone()
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		s.logger.Error("session parse could not decode claims")
		return nil, ErrInvalidToken.Clone()
	}

	if claims.TokenUse != expectedUse {
		return nil, ErrInvalidToken.Clone()
	}

	return claims, nil
}
