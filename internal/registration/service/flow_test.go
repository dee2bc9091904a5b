package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vektorkite/internal/registration/metrics"
	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/ports"
	"vektorkite/internal/registration/ports/mocks"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/requestcontext"
)

// =============================================================================
// Submission Flow Test Suite
// =============================================================================
// Justification for unit tests: the flow's outcome mapping depends only on the
// shape of the backend answer. Mocks let every shape be produced directly.

type FlowSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	auth     *mocks.MockAuthService
	profiles *mocks.MockProfileStore
	auditor  *mocks.MockAuditPublisher
	metrics  *metrics.Metrics
	flow     *Flow
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthService(s.ctrl)
	s.profiles = mocks.NewMockProfileStore(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	flow, err := NewFlow(s.auth,
		WithProfileStore(s.profiles),
		WithAuditPublisher(s.auditor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.flow = flow
}

func (s *FlowSuite) TearDownTest() {
	s.ctrl.Finish()
}

func registration() *models.NormalizedRegistration {
	return &models.NormalizedRegistration{
		FullName:      "John Doe",
		Email:         "john@example.com",
		Phone:         "+264811234567",
		Password:      "secret1",
		DateOfBirth:   time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		Age:           34,
		AcceptTerms:   true,
		AcceptPrivacy: true,
	}
}

func (s *FlowSuite) TestNewFlow_RequiresAuthService() {
	_, err := NewFlow(nil)
	s.Error(err)
	s.Contains(err.Error(), "auth service is required")
}

func (s *FlowSuite) TestSubmit_SendsProviderMetadata() {
	s.auth.EXPECT().SignUp(gomock.Any(), ports.SignUpRequest{
		Email:    "john@example.com",
		Password: "secret1",
		Metadata: ports.SignUpMetadata{
			FullName:        "John Doe",
			Phone:           "+264811234567",
			DateOfBirth:     "1990-01-01",
			UserType:        "provider",
			AcceptedTerms:   true,
			AcceptedPrivacy: true,
		},
	}).Return(&ports.SignUpResult{User: &ports.User{ID: "u1"}}, nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	outcome := s.flow.Submit(context.Background(), registration())
	s.Equal(models.StatusAwaitingVerification, outcome.Status)
}

func (s *FlowSuite) TestSubmit_UserWithoutSessionAwaitsVerification() {
	userID := uuid.New()
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(&ports.SignUpResult{User: &ports.User{ID: userID.String()}}, nil)
	s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p ports.Profile) error {
			s.Equal(userID.String(), p.UserID.String())
			s.Equal("provider", p.UserType)
			return nil
		})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventRegistrationSubmitted), e.Action)
			s.Equal("jo***@example.com", e.Subject)
			s.Equal(userID.String(), e.UserID.String())
			return nil
		})

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusAwaitingVerification, outcome.Status)
	s.Equal(models.MsgAwaitingVerification, outcome.Message)
	s.Equal(2, outcome.Step)
	s.Empty(outcome.RedirectTo)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Submissions.WithLabelValues("awaiting_verification", "")))
}

func (s *FlowSuite) TestSubmit_UserWithSessionIsActive() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).Return(&ports.SignUpResult{
		User:    &ports.User{ID: uuid.NewString()},
		Session: &ports.Session{AccessToken: "at"},
	}, nil)
	s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusActive, outcome.Status)
	s.Equal(models.MsgActive, outcome.Message)
	s.Equal("/thank-you", outcome.RedirectTo)
	s.Equal(3*time.Second, outcome.RedirectAfter)
}

func (s *FlowSuite) TestSubmit_NoUserReturned() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).Return(&ports.SignUpResult{}, nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusFailed, outcome.Status)
	s.Equal(models.MsgNoUserReturned, outcome.Message)
	s.Equal(1, outcome.Step)
}

func (s *FlowSuite) TestSubmit_DuplicateAccount() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(nil, &ports.AuthError{Status: 400, Message: "User already registered"})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(string(audit.EventRegistrationFailed), e.Action)
			s.Equal(string(models.KindDuplicateAccount), e.Reason)
			return nil
		})

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusFailed, outcome.Status)
	s.Equal(models.KindDuplicateAccount, outcome.Kind)
	s.Equal(models.MsgDuplicateAccount, outcome.Message)
}

func (s *FlowSuite) TestSubmit_ProfileAndAuditFailuresDoNotChangeOutcome() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(&ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil)
	s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit buffer full"))

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusAwaitingVerification, outcome.Status)
}

func (s *FlowSuite) TestSubmit_NonUUIDUserSkipsProfile() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(&ports.SignUpResult{User: &ports.User{ID: "u1"}}, nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	outcome := s.flow.Submit(context.Background(), registration())

	s.Equal(models.StatusAwaitingVerification, outcome.Status)
	s.Equal("u1", outcome.UserID)
}

func (s *FlowSuite) TestSubmit_CallerCancellationDoesNotAbortDispatchedSignup() {
	ctx, cancel := context.WithCancel(requestcontext.WithRequestID(context.Background(), "req-42"))
	defer cancel()

	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.SignUpRequest) (*ports.SignUpResult, error) {
			// The browser goes away while the backend is creating the account.
			cancel()
			return &ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil
		})
	s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.Profile) error {
			s.NoError(ctx.Err())
			s.Equal("req-42", requestcontext.RequestID(ctx))
			_, hasDeadline := ctx.Deadline()
			s.True(hasDeadline)
			return nil
		})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ audit.Event) error {
			s.NoError(ctx.Err())
			return nil
		})

	outcome := s.flow.Submit(ctx, registration())

	s.Equal(models.StatusAwaitingVerification, outcome.Status)
}

func (s *FlowSuite) TestSubmit_BoundedBySubmitTimeout() {
	flow, err := NewFlow(s.auth, WithSubmitTimeout(50*time.Millisecond))
	s.Require().NoError(err)

	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ports.SignUpRequest) (*ports.SignUpResult, error) {
			deadline, ok := ctx.Deadline()
			s.True(ok)
			s.WithinDuration(time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
			return &ports.SignUpResult{User: &ports.User{ID: "u1"}}, nil
		})

	outcome := flow.Submit(context.Background(), registration())

	s.Equal(models.StatusAwaitingVerification, outcome.Status)
}

func (s *FlowSuite) TestSubmit_RetriesProfileOnForeignKeyViolation() {
	s.flow.profileRetry = time.Millisecond
	fkViolation := fmt.Errorf("upsert service provider: %w", &pq.Error{Code: "23503"})

	s.Run("user row visible on retry", func() {
		s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
			Return(&ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil)
		gomock.InOrder(
			s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(fkViolation),
			s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(nil),
		)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		outcome := s.flow.Submit(context.Background(), registration())

		s.Equal(models.StatusAwaitingVerification, outcome.Status)
	})

	s.Run("one retry only", func() {
		s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
			Return(&ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil)
		s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(fkViolation).Times(2)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		outcome := s.flow.Submit(context.Background(), registration())

		s.Equal(models.StatusAwaitingVerification, outcome.Status)
	})

	s.Run("other profile errors are not retried", func() {
		s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
			Return(&ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil)
		s.profiles.EXPECT().CreatePending(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(1)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.flow.Submit(context.Background(), registration())
	})
}
