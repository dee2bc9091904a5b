package pages

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/ports"
	"vektorkite/internal/registration/ports/mocks"
	"vektorkite/internal/registration/service"
	"vektorkite/pkg/platform/sentinel"
	"vektorkite/pkg/testutil"
)

// =============================================================================
// Pages Handler Test Suite
// =============================================================================
// Justification for unit tests: the server-rendered form is the primary
// registration surface. Status codes, inline errors and the post-submit view
// are asserted against the rendered HTML with only the auth backend mocked.

type PagesSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	auth   *mocks.MockAuthService
	router chi.Router
	today  time.Time
}

func TestPagesSuite(t *testing.T) {
	suite.Run(t, new(PagesSuite))
}

func (s *PagesSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthService(s.ctrl)
	s.today = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	s.router = s.newRouter()
}

func (s *PagesSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PagesSuite) newRouter(opts ...service.ControllerOption) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow, err := service.NewFlow(s.auth, service.WithLogger(logger))
	s.Require().NoError(err)
	h, err := New(service.NewFactory(flow, opts...), logger, WithSupportEmail("support@vektorkite.test"))
	s.Require().NoError(err)

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterSubmit(r)
	r.NotFound(h.NotFound)
	return r
}

func validForm() url.Values {
	return url.Values{
		models.FieldFullName:        {"John Doe"},
		models.FieldEmail:           {"john@example.com"},
		models.FieldPhone:           {"+264811234567"},
		models.FieldPassword:        {"secret1"},
		models.FieldConfirmPassword: {"secret1"},
		models.FieldDateOfBirth:     {"1990-01-01"},
		models.FieldAcceptTerms:     {"on"},
		models.FieldAcceptPrivacy:   {"on"},
	}
}

func (s *PagesSuite) submit(form url.Values) *http.Request {
	return testutil.WithClock(testutil.NewFormRequest(s.T(), "/register", form), s.today)
}

func escaped(msg string) string {
	return template.HTMLEscapeString(msg)
}

// =============================================================================
// Static pages
// =============================================================================

func (s *PagesSuite) TestStaticPages() {
	cases := []struct {
		path     string
		fragment string
	}{
		{"/", "Your Skills, Our Platform"},
		{"/register", "Join as Service Provider"},
		{"/verify-email", "/api/verify-email"},
		{"/thank-you", "Welcome to VektorKite!"},
		{"/terms", "1. Introduction"},
		{"/privacy", "Privacy Policy"},
		{"/provider-agreement", "For registered service providers on VektorKite"},
	}
	for _, tc := range cases {
		s.Run(tc.path, func() {
			req := testutil.WithClock(testutil.NewRequest(s.T(), http.MethodGet, tc.path), s.today)
			rr := testutil.DoRequest(s.router, req)

			testutil.AssertStatus(s.T(), rr, http.StatusOK)
			s.Equal("text/html; charset=utf-8", rr.Header().Get("Content-Type"))
			testutil.AssertBodyContains(s.T(), rr, tc.fragment)
			testutil.AssertBodyContains(s.T(), rr, "support@vektorkite.test")
		})
	}
}

func (s *PagesSuite) TestRegisterFormCapsDatePickerAtToday() {
	req := testutil.WithClock(testutil.NewRequest(s.T(), http.MethodGet, "/register"), s.today)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertBodyContains(s.T(), rr, `max="2024-06-01"`)
}

func (s *PagesSuite) TestLandingListsCategories() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/"))

	for _, c := range landing.Categories {
		testutil.AssertBodyContains(s.T(), rr, c.Name)
	}
}

func (s *PagesSuite) TestSupportEmailHiddenWhenUnset() {
	flow, err := service.NewFlow(s.auth)
	s.Require().NoError(err)
	h, err := New(service.NewFactory(flow), nil)
	s.Require().NoError(err)
	r := chi.NewRouter()
	h.Register(r)

	rr := testutil.DoRequest(r, testutil.NewRequest(s.T(), http.MethodGet, "/thank-you"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.NotContains(rr.Body.String(), "mailto:")
}

// =============================================================================
// Form submission
// =============================================================================

func (s *PagesSuite) TestSubmit_AwaitingVerificationShowsStepTwo() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(&ports.SignUpResult{User: &ports.User{ID: uuid.NewString()}}, nil)

	rr := testutil.DoRequest(s.router, s.submit(validForm()))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertBodyContains(s.T(), rr, "Registration Submitted")
	testutil.AssertBodyContains(s.T(), rr, escaped(models.MsgAwaitingVerification))
	testutil.AssertBodyContains(s.T(), rr, `class="banner success"`)
	s.NotContains(rr.Body.String(), `http-equiv="refresh"`)
	s.NotContains(rr.Body.String(), "secret1")
}

func (s *PagesSuite) TestSubmit_ActiveSchedulesThankYou() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).Return(&ports.SignUpResult{
		User:    &ports.User{ID: uuid.NewString()},
		Session: &ports.Session{AccessToken: "at"},
	}, nil)

	rr := testutil.DoRequest(s.router, s.submit(validForm()))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertBodyContains(s.T(), rr, escaped(models.MsgActive))
	testutil.AssertBodyContains(s.T(), rr, `content="3;url=/thank-you"`)
}

func (s *PagesSuite) TestSubmit_ValidationErrorsRerenderForm() {
	form := validForm()
	form.Set(models.FieldConfirmPassword, "different")
	form.Del(models.FieldAcceptPrivacy)

	rr := testutil.DoRequest(s.router, s.submit(form))

	testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	body := rr.Body.String()
	s.Contains(body, escaped(models.MsgPasswordsMismatch))
	s.Contains(body, escaped(models.MsgPrivacyRequired))
	s.Contains(body, `value="John Doe"`)
	s.Contains(body, `value="john@example.com"`)
	s.NotContains(body, "secret1")
	s.NotContains(body, "different")
}

func (s *PagesSuite) TestSubmit_FailedSubmissionShowsBanner() {
	s.auth.EXPECT().SignUp(gomock.Any(), gomock.Any()).
		Return(nil, &ports.AuthError{Status: 422, Code: "user_already_exists", Message: "User already registered"})

	rr := testutil.DoRequest(s.router, s.submit(validForm()))

	testutil.AssertStatus(s.T(), rr, http.StatusBadGateway)
	testutil.AssertBodyContains(s.T(), rr, `class="banner error"`)
	testutil.AssertBodyContains(s.T(), rr, escaped(models.MsgDuplicateAccount))
	testutil.AssertBodyContains(s.T(), rr, "Join as Service Provider")
}

func (s *PagesSuite) TestSubmit_InFlightShowsBanner() {
	router := s.newRouter(service.WithGuard(heldGuard{}, time.Second))

	rr := testutil.DoRequest(router, s.submit(validForm()))

	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	testutil.AssertBodyContains(s.T(), rr, escaped(models.MsgTransientConflict))
}

// =============================================================================
// Legal JSON and fallbacks
// =============================================================================

func (s *PagesSuite) TestLegalJSON() {
	s.Run("known document", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/legal/privacy"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		doc := testutil.UnmarshalResponse[LegalDocument](s.T(), rr)
		s.Equal(DocPrivacy, doc.Slug)
		s.NotEmpty(doc.Sections)
	})

	s.Run("unknown document", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/legal/cookies"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *PagesSuite) TestNotFound() {
	s.Run("page paths go home", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/pricing"))

		testutil.AssertRedirect(s.T(), rr, http.StatusFound, "/")
	})

	s.Run("api paths get JSON", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/nope"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func TestSecondsCeil(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       0,
		-time.Second:            0,
		3 * time.Second:         3,
		1500 * time.Millisecond: 2,
	}
	for in, want := range cases {
		if got := secondsCeil(in); got != want {
			t.Errorf("secondsCeil(%v) = %d, want %d", in, got, want)
		}
	}
}

type heldGuard struct{}

func (heldGuard) Acquire(context.Context, string, time.Duration) (string, error) {
	return "", sentinel.ErrConflict
}

func (heldGuard) Release(context.Context, string, string) error { return nil }
