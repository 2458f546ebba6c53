package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenPurpose binds a signed token to a single operation
type TokenPurpose = string

const (
	// PurposeEmailVerification proves ownership of a registered email
	PurposeEmailVerification TokenPurpose = "email_verification"
	// PurposePasswordReset authorizes a password reset
	PurposePasswordReset TokenPurpose = "password_reset"
	// PurposeHRPasswordSet authorizes a provisioned recruiter to pick an
	// initial password
	PurposeHRPasswordSet TokenPurpose = "hr_password_set"
)

// DefaultTokenTTL is how long signed tokens stay valid
const DefaultTokenTTL = 24 * time.Hour

// TokenPair is the two part credential sent out of band. UID carries the
// account reference, Token carries the purpose bound signature.
type TokenPair struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// SignedTokenService mints and validates stateless, purpose bound tokens.
// A token is valid only while the account's security stamp is unchanged, so
// any password or verification change retires every outstanding token
// without server side storage.
type SignedTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// SignedTokenOption configures a SignedTokenService
type SignedTokenOption func(*SignedTokenService)

// WithTokenTTL overrides the default token lifetime
func WithTokenTTL(ttl time.Duration) SignedTokenOption {
	return func(s *SignedTokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenClock overrides the clock, used in tests
func WithTokenClock(now func() time.Time) SignedTokenOption {
	return func(s *SignedTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) SignedTokenOption {
	return func(s *SignedTokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSignedTokenService creates a SignedTokenService with the given secret
func NewSignedTokenService(secret []byte, opts ...SignedTokenOption) *SignedTokenService {
	s := &SignedTokenService{
		secret: secret,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate mints a token pair for the account and purpose
func (s *SignedTokenService) Generate(account *Account, purpose TokenPurpose) TokenPair {
	ts := s.now().Unix()
	return TokenPair{
		UID:   EncodeUID(account.ID),
		Token: s.tokenAt(account, purpose, ts),
	}
}

// Validate checks a token against the account's current state and the
// expected purpose. Every failure mode returns ErrInvalidToken so callers
// cannot probe which check failed.
func (s *SignedTokenService) Validate(account *Account, token string, purpose TokenPurpose) error {
	if account == nil || token == "" {
		return ErrInvalidToken
	}

	tsPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return ErrInvalidToken
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return ErrInvalidToken
	}

	expected := s.tokenAt(account, purpose, ts)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidToken
	}

	if s.now().Sub(time.Unix(ts, 0)) > s.ttl {
		return ErrInvalidToken
	}

	return nil
}

func (s *SignedTokenService) tokenAt(account *Account, purpose TokenPurpose, ts int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(account.ID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(account.SecurityStamp()))
	mac.Write([]byte{0})
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(ts, 10)))

	sig := hex.EncodeToString(mac.Sum(nil))
	return strconv.FormatInt(ts, 36) + "-" + sig
}

// EncodeUID converts an account id into its url safe transport form
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID converts a transport uid back into an account id. Any decode
// failure collapses into ErrInvalidToken.
func DecodeUID(uid string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
