package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vektorkite/internal/registration/metrics"
	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/ports"
	id "vektorkite/pkg/domain"
	"vektorkite/pkg/email"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/requestcontext"
)

const (
	defaultThankYouDelay = 3 * time.Second
	defaultSubmitTimeout = 30 * time.Second
	profileRetryDelay    = 500 * time.Millisecond
)

// Flow submits validated registrations to the auth backend and interprets
// the answer. It holds no per-user state and is safe for concurrent use.
type Flow struct {
	auth          ports.AuthService
	profiles      ports.ProfileStore
	auditor       ports.AuditPublisher
	logger        *slog.Logger
	metrics       *metrics.Metrics
	thankYouDelay time.Duration
	submitTimeout time.Duration
	profileRetry  time.Duration
}

type FlowOption func(*Flow)

func WithProfileStore(store ports.ProfileStore) FlowOption {
	return func(f *Flow) {
		f.profiles = store
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) FlowOption {
	return func(f *Flow) {
		f.auditor = publisher
	}
}

func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) FlowOption {
	return func(f *Flow) {
		f.metrics = m
	}
}

// WithThankYouDelay sets how long an active account sees the success banner
// before moving on to the thank-you page.
func WithThankYouDelay(d time.Duration) FlowOption {
	return func(f *Flow) {
		f.thankYouDelay = d
	}
}

// WithSubmitTimeout bounds a submission once dispatched. The bound replaces the
// request deadline, which no longer applies after the signup call has started.
func WithSubmitTimeout(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d > 0 {
			f.submitTimeout = d
		}
	}
}

func NewFlow(auth ports.AuthService, opts ...FlowOption) (*Flow, error) {
	if auth == nil {
		return nil, errors.New("auth service is required")
	}
	f := &Flow{
		auth:          auth,
		logger:        slog.Default(),
		thankYouDelay: defaultThankYouDelay,
		submitTimeout: defaultSubmitTimeout,
		profileRetry:  profileRetryDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Submit performs one signup call. It never returns an error: every failure
// becomes a StatusFailed outcome with a classified kind and message.
//
// A dispatched submission runs to completion even if the caller goes away:
// the backend may already have created the account, so the profile write and
// the audit event must still happen. Only the submit timeout bounds it.
func (f *Flow) Submit(ctx context.Context, reg *models.NormalizedRegistration) *models.Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.submitTimeout)
	defer cancel()

	start := time.Now()
	outcome := f.submit(ctx, reg)
	if f.metrics != nil {
		f.metrics.ObserveSubmit(start)
		f.metrics.IncrementSubmission(string(outcome.Status), string(outcome.Kind))
	}
	f.emitAudit(ctx, reg, outcome)
	return outcome
}

func (f *Flow) submit(ctx context.Context, reg *models.NormalizedRegistration) *models.Outcome {
	masked := email.Mask(reg.Email)
	requestID := requestcontext.RequestID(ctx)

	result, err := f.auth.SignUp(ctx, ports.SignUpRequest{
		Email:    reg.Email,
		Password: reg.Password,
		Metadata: ports.SignUpMetadata{
			FullName:        reg.FullName,
			Phone:           reg.Phone,
			DateOfBirth:     reg.DateOfBirthString(),
			UserType:        ports.UserTypeProvider,
			AcceptedTerms:   true,
			AcceptedPrivacy: true,
		},
	})
	if err != nil {
		kind, msg := Classify(err)
		f.logger.WarnContext(ctx, "registration failed",
			"email", masked,
			"error_kind", kind,
			"error", err,
			"request_id", requestID,
		)
		return &models.Outcome{Status: models.StatusFailed, Kind: kind, Message: msg, Step: 1}
	}

	if result == nil || result.User == nil {
		f.logger.ErrorContext(ctx, "signup returned no user",
			"email", masked,
			"request_id", requestID,
		)
		return &models.Outcome{
			Status:  models.StatusFailed,
			Kind:    models.KindUpstream,
			Message: models.MsgNoUserReturned,
			Step:    1,
		}
	}

	f.createProfile(ctx, reg, result.User)

	if result.Session == nil {
		f.logger.InfoContext(ctx, "registration awaiting email verification",
			"email", masked,
			"user_id", result.User.ID,
			"request_id", requestID,
		)
		return &models.Outcome{
			Status:  models.StatusAwaitingVerification,
			UserID:  result.User.ID,
			Message: models.MsgAwaitingVerification,
			Step:    2,
		}
	}

	f.logger.InfoContext(ctx, "registration active",
		"email", masked,
		"user_id", result.User.ID,
		"request_id", requestID,
	)
	return &models.Outcome{
		Status:        models.StatusActive,
		UserID:        result.User.ID,
		Message:       models.MsgActive,
		Step:          2,
		RedirectTo:    models.ThankYouPath,
		RedirectAfter: f.thankYouDelay,
	}
}

// createProfile records the pending provider row. The account already exists
// at this point, so a failure here is logged and the outcome stands.
func (f *Flow) createProfile(ctx context.Context, reg *models.NormalizedRegistration, user *ports.User) {
	if f.profiles == nil {
		return
	}
	userID, err := id.ParseUserID(user.ID)
	if err != nil {
		f.logger.WarnContext(ctx, "auth backend returned a non-uuid user id; profile not created",
			"user_id", user.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	profile := ports.Profile{
		UserID:          userID,
		Email:           reg.Email,
		FullName:        reg.FullName,
		Phone:           reg.Phone,
		DateOfBirth:     reg.DateOfBirth,
		UserType:        ports.UserTypeProvider,
		AcceptedTerms:   reg.AcceptTerms,
		AcceptedPrivacy: reg.AcceptPrivacy,
	}
	err = f.profiles.CreatePending(ctx, profile)
	kind, _ := Classify(err)
	if err != nil && kind == models.KindTransientConflict {
		// The backend can answer before its user row is visible to the
		// profile's foreign key. One delayed retry covers that window.
		select {
		case <-time.After(f.profileRetry):
			err = f.profiles.CreatePending(ctx, profile)
		case <-ctx.Done():
		}
	}
	if err != nil {
		kind, _ = Classify(err)
		f.logger.WarnContext(ctx, "failed to create provider profile",
			"user_id", user.ID,
			"error_kind", kind,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (f *Flow) emitAudit(ctx context.Context, reg *models.NormalizedRegistration, outcome *models.Outcome) {
	if f.auditor == nil {
		return
	}
	action := audit.EventRegistrationSubmitted
	if outcome.Status == models.StatusFailed {
		action = audit.EventRegistrationFailed
	}
	event := audit.NewEvent(ctx, action)
	event.Subject = email.Mask(reg.Email)
	event.Decision = string(outcome.Status)
	event.Reason = string(outcome.Kind)
	if userID, err := id.ParseUserID(outcome.UserID); err == nil {
		event.UserID = userID
	}
	if err := f.auditor.Emit(ctx, event); err != nil {
		f.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
