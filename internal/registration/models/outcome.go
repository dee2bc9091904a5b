package models

import "time"

// Status is the terminal state of one submission attempt.
type Status string

const (
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusActive               Status = "active"
	StatusFailed               Status = "failed"
)

// ErrorKind is the stable, user-facing category of a failed submission.
type ErrorKind string

const (
	KindDuplicateAccount   ErrorKind = "duplicate_account"
	KindWeakPassword       ErrorKind = "weak_password"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindTransientConflict  ErrorKind = "transient_conflict"
	KindUnavailable        ErrorKind = "unavailable"
	KindUpstream           ErrorKind = "upstream"
	KindUnknown            ErrorKind = "unknown"
)

const (
	MsgAwaitingVerification = "Registration successful! Please check your email (including spam folder) to verify your account."
	MsgActive               = "Registration successful! Your account is now active."
	MsgNoUserReturned       = "User creation failed. No user returned from auth."
	MsgDuplicateAccount     = "This email is already registered. Please use a different email."
	MsgWeakPassword         = "Password is too weak. Please use a stronger password (min 6 characters)."
	MsgInvalidCredentials   = "Invalid credentials. Please check your email and password."
	MsgTransientConflict    = "Account creation in progress. Please try again in a moment."
	MsgUnavailable          = "Registration service is temporarily unavailable. Please try again."
	MsgRegistrationFailed   = "Registration failed. Please try again."
)

// ThankYouPath is where an active account lands after the success banner.
const ThankYouPath = "/thank-you"

// Outcome is the result of one submission. It is never persisted.
type Outcome struct {
	Status  Status    `json:"status"`
	UserID  string    `json:"user_id,omitempty"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	// Step is the UI step the form should show: 1 for the form, 2 for the
	// submitted confirmation.
	Step          int           `json:"step"`
	RedirectTo    string        `json:"redirect_to,omitempty"`
	RedirectAfter time.Duration `json:"-"`
}

// RedirectAfterMillis exposes the delay to JSON clients.
func (o *Outcome) RedirectAfterMillis() int64 {
	return o.RedirectAfter.Milliseconds()
}

func (o *Outcome) Succeeded() bool {
	return o.Status == StatusAwaitingVerification || o.Status == StatusActive
}
