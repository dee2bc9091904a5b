// Package ports defines the collaborators the registration and verification
// flows consume: the hosted auth backend, the provider profile sink and the
// audit publisher.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks AuthService,ProfileStore,AuditPublisher

import (
	"context"
	"fmt"
	"time"

	id "vektorkite/pkg/domain"
	audit "vektorkite/pkg/platform/audit"
)

// UserTypeProvider marks signups from this site in the account metadata.
const UserTypeProvider = "provider"

// User is the account as the auth backend reports it.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

// Session is present only when the backend activated the account immediately.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// SignUpMetadata is stored by the backend alongside the account.
type SignUpMetadata struct {
	FullName        string `json:"full_name"`
	Phone           string `json:"phone"`
	DateOfBirth     string `json:"date_of_birth"`
	UserType        string `json:"user_type"`
	AcceptedTerms   bool   `json:"accepted_terms"`
	AcceptedPrivacy bool   `json:"accepted_privacy"`
}

type SignUpRequest struct {
	Email    string
	Password string
	Metadata SignUpMetadata
}

// SignUpResult mirrors the backend response: either field may be nil.
type SignUpResult struct {
	User    *User
	Session *Session
}

// AuthService is the hosted account and session backend.
type AuthService interface {
	SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error)
	// VerifySession exchanges a verification-link token pair for the user.
	VerifySession(ctx context.Context, accessToken, refreshToken string) (*User, error)
	// CurrentSession resolves an existing session token; nil user means none.
	CurrentSession(ctx context.Context, accessToken string) (*User, error)
}

// Profile is the provider row kept next to the auth account.
type Profile struct {
	UserID          id.UserID
	Email           string
	FullName        string
	Phone           string
	DateOfBirth     time.Time
	UserType        string
	AcceptedTerms   bool
	AcceptedPrivacy bool
}

// ProfileStore is the profile-update sink keyed by user id.
type ProfileStore interface {
	CreatePending(ctx context.Context, profile Profile) error
	// MarkVerified sets email_verified, email_verified_at and
	// verification_status='verified'.
	MarkVerified(ctx context.Context, userID id.UserID, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuthError is a non-2xx answer from the auth backend. Code is the typed
// error code when the backend sends one.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth backend %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth backend %d: %s", e.Status, e.Message)
}
