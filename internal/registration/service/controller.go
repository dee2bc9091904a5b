package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vektorkite/internal/registration/metrics"
	"vektorkite/internal/registration/models"
	dErrors "vektorkite/pkg/domain-errors"
	"vektorkite/pkg/platform/sentinel"
	"vektorkite/pkg/requestcontext"
)

// ErrSubmissionInFlight rejects a second submit while one is still running,
// either on the same controller or, through the guard, for the same email.
var ErrSubmissionInFlight = dErrors.New(dErrors.CodeConflict, "a registration for this email is already in progress")

// State is the controller's position in the submission lifecycle.
type State string

const (
	StateIdle                 State = "idle"
	StateSubmitting           State = "submitting"
	StateAwaitingVerification State = "awaiting_verification"
	StateActive               State = "active"
	StateFailed               State = "failed"
)

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// Notifier surfaces the single banner a submission produces.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Navigator schedules a move to another page. Scheduling is fire-and-forget:
// the caller never cancels it.
type Navigator interface {
	Navigate(to string, after time.Duration)
}

// Submitter is the part of Flow the controller drives.
type Submitter interface {
	Submit(ctx context.Context, reg *models.NormalizedRegistration) *models.Outcome
}

// InFlightGuard holds a per-key lock for the duration of the signup call.
// Acquire returns sentinel.ErrConflict when the key is already held.
type InFlightGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// Controller owns the state of one registration form: idle, submitting and
// the terminal outcome, plus the UI step. Create one per form instance.
type Controller struct {
	flow      Submitter
	notifier  Notifier
	navigator Navigator
	guard     InFlightGuard
	guardTTL  time.Duration
	location  *time.Location
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	state   State
	step    int
	outcome *models.Outcome
}

type ControllerOption func(*Controller)

func WithGuard(guard InFlightGuard, ttl time.Duration) ControllerOption {
	return func(c *Controller) {
		c.guard = guard
		c.guardTTL = ttl
	}
}

// WithLocation sets the time zone whose calendar date counts as "today" for
// the age rule.
func WithLocation(loc *time.Location) ControllerOption {
	return func(c *Controller) {
		if loc != nil {
			c.location = loc
		}
	}
}

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithControllerMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

func NewController(flow Submitter, notifier Notifier, navigator Navigator, opts ...ControllerOption) *Controller {
	c := &Controller{
		flow:      flow,
		notifier:  notifier,
		navigator: navigator,
		guardTTL:  30 * time.Second,
		location:  time.UTC,
		logger:    slog.Default(),
		state:     StateIdle,
		step:      1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory builds one Controller per form instance around shared collaborators.
type Factory struct {
	flow Submitter
	opts []ControllerOption
}

func NewFactory(flow Submitter, opts ...ControllerOption) *Factory {
	return &Factory{flow: flow, opts: opts}
}

func (f *Factory) New(notifier Notifier, navigator Navigator) *Controller {
	return NewController(f.flow, notifier, navigator, f.opts...)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) Outcome() *models.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Validate runs the field rules against today's date without submitting.
func (c *Controller) Validate(ctx context.Context, req *models.RegisterRequest) (*models.NormalizedRegistration, error) {
	reg, err := models.Validate(req, c.Today(ctx))
	if err != nil && c.metrics != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			for field := range verr.Fields {
				c.metrics.IncrementValidationFailure(field)
			}
		}
	}
	return reg, err
}

// Submit re-validates req (the age rule is checked again as of now), then
// submits it. Validation failures return a *models.ValidationError and leave
// the state untouched; no notification is sent for them.
func (c *Controller) Submit(ctx context.Context, req *models.RegisterRequest) (*models.Outcome, error) {
	reg, err := c.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.begin(); err != nil {
		return nil, err
	}

	outcome, err := c.submitGuarded(ctx, reg)
	if err != nil {
		c.restore()
		return nil, err
	}

	c.finish(outcome)
	c.notify(ctx, outcome)
	if outcome.Status == models.StatusActive && c.navigator != nil {
		c.navigator.Navigate(outcome.RedirectTo, outcome.RedirectAfter)
	}
	return outcome, nil
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	c.state = StateSubmitting
	return nil
}

// restore returns to the pre-submit state when the attempt never reached the
// backend.
func (c *Controller) restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		c.state = StateIdle
		return
	}
	c.state = stateFor(c.outcome.Status)
}

func (c *Controller) finish(outcome *models.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcome = outcome
	c.state = stateFor(outcome.Status)
	c.step = outcome.Step
}

func stateFor(status models.Status) State {
	switch status {
	case models.StatusAwaitingVerification:
		return StateAwaitingVerification
	case models.StatusActive:
		return StateActive
	default:
		return StateFailed
	}
}

func (c *Controller) submitGuarded(ctx context.Context, reg *models.NormalizedRegistration) (outcome *models.Outcome, err error) {
	// A panicking submitter must not strand the controller in Submitting.
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.ErrorContext(ctx, "registration submit panicked",
				"panic", rec,
				"request_id", requestcontext.RequestID(ctx),
			)
			outcome = &models.Outcome{
				Status:  models.StatusFailed,
				Kind:    models.KindUnknown,
				Message: models.MsgRegistrationFailed,
				Step:    1,
			}
			err = nil
		}
	}()

	if c.guard == nil {
		return c.flow.Submit(ctx, reg), nil
	}

	key := guardKey(reg.Email)
	token, err := c.guard.Acquire(ctx, key, c.guardTTL)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		if c.metrics != nil {
			c.metrics.IncrementInFlightRejected()
		}
		return nil, ErrSubmissionInFlight
	case err != nil:
		// The guard is best effort; a broken lock store must not block signups.
		c.logger.WarnContext(ctx, "in-flight guard unavailable, submitting unguarded",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return c.flow.Submit(ctx, reg), nil
	}

	defer func() {
		// Release on a fresh context: the request may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if relErr := c.guard.Release(releaseCtx, key, token); relErr != nil {
			c.logger.WarnContext(ctx, "failed to release in-flight guard",
				"error", relErr,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}()
	return c.flow.Submit(ctx, reg), nil
}

func (c *Controller) notify(ctx context.Context, outcome *models.Outcome) {
	if c.notifier == nil {
		return
	}
	level := LevelSuccess
	if outcome.Status == models.StatusFailed {
		level = LevelError
	}
	c.notifier.Notify(ctx, Notification{Level: level, Message: outcome.Message})
}

// Today is the request-scoped date in the controller's time zone.
func (c *Controller) Today(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).In(c.location)
}

// guardKey keeps raw email addresses out of the lock store.
func guardKey(normalizedEmail string) string {
	sum := sha256.Sum256([]byte(normalizedEmail))
	return "registration:inflight:" + hex.EncodeToString(sum[:])
}
