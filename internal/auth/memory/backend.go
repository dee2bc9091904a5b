// Package memory is an in-process auth backend for local development and
// tests. It mimics the hosted backend's signup and session semantics.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	jwttoken "vektorkite/internal/jwt_token"
	"vektorkite/internal/registration/ports"
	dErrors "vektorkite/pkg/domain-errors"
	"vektorkite/pkg/email"
)

const minPasswordLength = 6

const (
	issuer   = "vektorkite-dev"
	audience = "authenticated"
)

type account struct {
	user         ports.User
	passwordHash []byte
}

// LinkFunc receives the fragment of a freshly issued verification link.
type LinkFunc func(ctx context.Context, email, fragment string)

type Backend struct {
	mu       sync.RWMutex
	accounts map[string]*account // keyed by normalized email
	byID     map[string]*account

	tokens      *jwttoken.JWTService
	tokenTTL    time.Duration
	autoConfirm bool
	onLink      LinkFunc
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Backend)

// WithAutoConfirm activates accounts at signup and returns a session.
func WithAutoConfirm(enabled bool) Option {
	return func(b *Backend) { b.autoConfirm = enabled }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithLinkFunc is called for every verification link issued in confirm-email mode.
func WithLinkFunc(fn LinkFunc) Option {
	return func(b *Backend) { b.onLink = fn }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

func New(signingKey string, opts ...Option) (*Backend, error) {
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	b := &Backend{
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		tokenTTL: time.Hour,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = jwttoken.NewJWTService(signingKey, issuer, audience, jwttoken.WithClock(b.now))
	return b, nil
}

func (b *Backend) SignUp(ctx context.Context, req ports.SignUpRequest) (*ports.SignUpResult, error) {
	if len(req.Password) < minPasswordLength {
		return nil, &ports.AuthError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "weak_password",
			Message: fmt.Sprintf("Password should be at least %d characters.", minPasswordLength),
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, &ports.AuthError{
				Status:  http.StatusUnprocessableEntity,
				Code:    "weak_password",
				Message: "Password is too long.",
			}
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	key := email.Normalize(req.Email)
	b.mu.Lock()
	if _, exists := b.accounts[key]; exists {
		b.mu.Unlock()
		return nil, &ports.AuthError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "user_already_exists",
			Message: "User already registered",
		}
	}
	acct := &account{
		user: ports.User{
			ID:           uuid.NewString(),
			Email:        key,
			UserMetadata: metadataMap(req.Metadata),
		},
		passwordHash: hash,
	}
	if b.autoConfirm {
		confirmed := b.now()
		acct.user.EmailConfirmedAt = &confirmed
	}
	b.accounts[key] = acct
	b.byID[acct.user.ID] = acct
	user := acct.user
	b.mu.Unlock()

	token, err := b.issue(user)
	if err != nil {
		return nil, err
	}
	if b.autoConfirm {
		return &ports.SignUpResult{User: &user, Session: token}, nil
	}

	b.logger.InfoContext(ctx, "verification link issued", "email", email.Mask(user.Email))
	if b.onLink != nil {
		b.onLink(ctx, user.Email, verificationFragment(token))
	}
	return &ports.SignUpResult{User: &user}, nil
}

// VerifySession confirms the account behind a verification-link token.
func (b *Backend) VerifySession(_ context.Context, accessToken, _ string) (*ports.User, error) {
	acct, err := b.lookup(accessToken)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if acct.user.EmailConfirmedAt == nil {
		confirmed := b.now()
		acct.user.EmailConfirmedAt = &confirmed
	}
	user := acct.user
	return &user, nil
}

func (b *Backend) CurrentSession(_ context.Context, accessToken string) (*ports.User, error) {
	acct, err := b.lookup(accessToken)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	user := acct.user
	return &user, nil
}

func (b *Backend) issue(user ports.User) (*ports.Session, error) {
	access, err := b.tokens.GenerateAccessToken(uuid.MustParse(user.ID), user.Email, b.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &ports.Session{
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
		ExpiresIn:    int(b.tokenTTL.Seconds()),
		TokenType:    "bearer",
	}, nil
}

func (b *Backend) lookup(accessToken string) (*account, error) {
	claims, err := b.tokens.ValidateToken(accessToken)
	if err != nil {
		return nil, &ports.AuthError{
			Status:  http.StatusUnauthorized,
			Code:    "bad_jwt",
			Message: dErrors.MessageOf(err),
		}
	}
	b.mu.RLock()
	acct, ok := b.byID[claims.UserID]
	b.mu.RUnlock()
	if !ok {
		return nil, &ports.AuthError{
			Status:  http.StatusNotFound,
			Code:    "user_not_found",
			Message: "User from sub claim in JWT does not exist",
		}
	}
	return acct, nil
}

func verificationFragment(s *ports.Session) string {
	v := url.Values{}
	v.Set("access_token", s.AccessToken)
	v.Set("refresh_token", s.RefreshToken)
	v.Set("expires_in", fmt.Sprint(s.ExpiresIn))
	v.Set("token_type", s.TokenType)
	v.Set("type", "signup")
	return "#" + v.Encode()
}

func metadataMap(m ports.SignUpMetadata) map[string]any {
	return map[string]any{
		"full_name":        m.FullName,
		"phone":            m.Phone,
		"date_of_birth":    m.DateOfBirth,
		"user_type":        m.UserType,
		"accepted_terms":   m.AcceptedTerms,
		"accepted_privacy": m.AcceptedPrivacy,
	}
}
