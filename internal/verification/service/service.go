// Package service exchanges email-verification links for a verified account.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"vektorkite/internal/registration/ports"
	"vektorkite/internal/verification/metrics"
	id "vektorkite/pkg/domain"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/requestcontext"
)

const (
	MsgVerified         = "Email verified successfully! Welcome to VektorKite!"
	MsgAlreadyVerified  = "Your email is already verified!"
	MsgInvalidLink      = "Invalid verification link or no token found"
	MsgNoUserData       = "No user data received after verification"
	MsgAlreadyConfirmed = "This email has already been verified."
	MsgLinkExpired      = "Verification link expired or invalid."
	MsgVerifyFailed     = "Failed to verify email. Please try again."

	TypeSignup = "signup"

	ThankYouPath = "/thank-you"
	RetryPath    = "/verify-email"
	HomePath     = "/"
)

// VerifyRequest carries the verification-link fragment plus any session the
// visitor already holds.
type VerifyRequest struct {
	Type         string `json:"type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// CurrentAccessToken comes from the session cookie or bearer header, never the body.
	CurrentAccessToken string `json:"-"`
}

// ParseFragment reads type, access_token and refresh_token from a URL
// fragment, with or without the leading '#'.
func ParseFragment(fragment string) VerifyRequest {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return VerifyRequest{}
	}
	return VerifyRequest{
		Type:         values.Get("type"),
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
	}
}

type Status string

const (
	StatusVerified        Status = "verified"
	StatusAlreadyVerified Status = "already_verified"
	StatusError           Status = "error"
)

// Action is a manual next step offered on the error view.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

var errorActions = []Action{
	{ID: "retry", Label: "Try Again", Href: RetryPath},
	{ID: "home", Label: "Return Home", Href: HomePath},
}

type Result struct {
	Status        Status        `json:"status"`
	Message       string        `json:"message"`
	UserID        string        `json:"user_id,omitempty"`
	RedirectTo    string        `json:"redirect_to"`
	RedirectAfter time.Duration `json:"-"`
	Actions       []Action      `json:"actions,omitempty"`
}

// Succeeded reports whether the visitor ends up verified.
func (r *Result) Succeeded() bool {
	return r.Status == StatusVerified || r.Status == StatusAlreadyVerified
}

// flowError is a failure raised by the flow itself; its text is user-facing.
type flowError struct{ msg string }

func (e *flowError) Error() string { return e.msg }

type Service struct {
	auth     ports.AuthService
	profiles ports.ProfileStore
	auditor  ports.AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics

	verifiedDelay        time.Duration
	alreadyVerifiedDelay time.Duration
	errorDelay           time.Duration
}

type Option func(*Service)

func WithProfileStore(store ports.ProfileStore) Option {
	return func(s *Service) { s.profiles = store }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRedirectDelays sets how long each result view stays up before moving on.
func WithRedirectDelays(verified, alreadyVerified, onError time.Duration) Option {
	return func(s *Service) {
		s.verifiedDelay = verified
		s.alreadyVerifiedDelay = alreadyVerified
		s.errorDelay = onError
	}
}

func New(auth ports.AuthService, opts ...Option) (*Service, error) {
	if auth == nil {
		return nil, errors.New("auth service is required")
	}
	s := &Service{
		auth:                 auth,
		logger:               slog.Default(),
		verifiedDelay:        2 * time.Second,
		alreadyVerifiedDelay: 1500 * time.Millisecond,
		errorDelay:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify never retries: a failed link gets an error view with manual actions.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) *Result {
	result, err := s.verify(ctx, req)
	if err != nil {
		msg := errorMessage(err)
		s.logger.WarnContext(ctx, "email verification failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		result = &Result{
			Status:        StatusError,
			Message:       msg,
			RedirectTo:    HomePath,
			RedirectAfter: s.errorDelay,
			Actions:       errorActions,
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementVerification(string(result.Status))
	}
	s.emitAudit(ctx, result)
	return result
}

func (s *Service) verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	if req.Type == TypeSignup && req.AccessToken != "" {
		user, err := s.auth.VerifySession(ctx, req.AccessToken, req.RefreshToken)
		if err != nil {
			return nil, err
		}
		if user == nil || user.ID == "" {
			return nil, &flowError{msg: MsgNoUserData}
		}
		s.markVerified(ctx, user.ID)
		s.logger.InfoContext(ctx, "email verified",
			"user_id", user.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &Result{
			Status:        StatusVerified,
			Message:       MsgVerified,
			UserID:        user.ID,
			RedirectTo:    ThankYouPath,
			RedirectAfter: s.verifiedDelay,
		}, nil
	}

	// A second click on the link arrives without a fresh token but with the
	// session the first click established.
	if req.CurrentAccessToken != "" {
		user, err := s.auth.CurrentSession(ctx, req.CurrentAccessToken)
		if err != nil {
			s.logger.DebugContext(ctx, "current session lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if err == nil && user != nil {
			return &Result{
				Status:        StatusAlreadyVerified,
				Message:       MsgAlreadyVerified,
				UserID:        user.ID,
				RedirectTo:    ThankYouPath,
				RedirectAfter: s.alreadyVerifiedDelay,
			}, nil
		}
	}
	return nil, &flowError{msg: MsgInvalidLink}
}

// markVerified updates the provider profile. Auth verification already
// succeeded, so a failure is logged and the visitor still sees success.
func (s *Service) markVerified(ctx context.Context, rawUserID string) {
	if s.profiles == nil {
		return
	}
	userID, err := id.ParseUserID(rawUserID)
	if err == nil {
		err = s.profiles.MarkVerified(ctx, userID, requestcontext.Now(ctx))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementProfileUpdateFailure()
		}
		s.logger.WarnContext(ctx, "profile verification update failed",
			"user_id", rawUserID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.emitProfileStale(ctx, userID)
	}
}

func errorMessage(err error) string {
	msg := ""
	var fe *flowError
	var authErr *ports.AuthError
	switch {
	case errors.As(err, &fe):
		msg = fe.msg
	case errors.As(err, &authErr):
		msg = strings.TrimSpace(authErr.Message)
	}

	switch {
	case strings.Contains(msg, "already confirmed"):
		return MsgAlreadyConfirmed
	case strings.Contains(msg, "Invalid login credentials"):
		return MsgLinkExpired
	case msg != "":
		return msg
	}
	return MsgVerifyFailed
}

func (s *Service) emitAudit(ctx context.Context, result *Result) {
	if s.auditor == nil || result.Status == StatusAlreadyVerified {
		return
	}
	action := audit.EventEmailVerified
	if result.Status == StatusError {
		action = audit.EventEmailVerificationFailed
	}
	event := audit.NewEvent(ctx, action)
	event.Decision = string(result.Status)
	if result.Status == StatusError {
		event.Reason = result.Message
	}
	if userID, err := id.ParseUserID(result.UserID); err == nil {
		event.UserID = userID
	}
	s.emit(ctx, event)
}

func (s *Service) emitProfileStale(ctx context.Context, userID id.UserID) {
	if s.auditor == nil {
		return
	}
	event := audit.NewEvent(ctx, audit.EventProfileVerificationStale)
	event.UserID = userID
	s.emit(ctx, event)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
