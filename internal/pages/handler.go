// Package pages serves the server-rendered landing, registration, verification
// and legal pages.
package pages

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/service"
	"vektorkite/pkg/email"
	"vektorkite/pkg/platform/httputil"
	"vektorkite/pkg/requestcontext"

	dErrors "vektorkite/pkg/domain-errors"
)

const maxFormBytes = 64 << 10

// registerForm is the state of the registration page for one render.
type registerForm struct {
	Step    int
	Values  models.RegisterRequest
	Errors  models.FieldErrors
	Banner  *service.Notification
	MaxDate string
}

type Handler struct {
	controllers  *service.Factory
	renderer     *renderer
	logger       *slog.Logger
	supportEmail string
}

type Option func(*Handler)

// WithSupportEmail shows a contact address in the footer and legal pages.
func WithSupportEmail(addr string) Option {
	return func(h *Handler) { h.supportEmail = strings.TrimSpace(addr) }
}

func New(controllers *service.Factory, logger *slog.Logger, opts ...Option) (*Handler, error) {
	if controllers == nil {
		return nil, errors.New("controller factory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	h := &Handler{controllers: controllers, renderer: r, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleLanding)
	r.Get("/register", h.handleRegisterForm)
	r.Get("/verify-email", h.handleVerifyEmail)
	r.Get("/thank-you", h.handleThankYou)
	r.Get("/terms", h.legalPage(DocTerms))
	r.Get("/privacy", h.legalPage(DocPrivacy))
	r.Get("/provider-agreement", h.legalPage(DocProviderAgreement))
	r.Get("/api/legal/{doc}", h.handleLegalJSON)
}

// RegisterSubmit mounts the form POST separately so the router can put it
// behind the rate limiter.
func (h *Handler) RegisterSubmit(r chi.Router) {
	r.Post("/register", h.handleRegisterSubmit)
}

// NotFound sends unknown API paths a JSON 404 and everything else home.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) base(extra view) view {
	extra.SupportEmail = h.supportEmail
	extra.Year = time.Now().Year()
	return extra
}

func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageLanding, h.base(view{Landing: &landing}))
}

func (h *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	form := h.newForm(r)
	h.render(w, r, http.StatusOK, pageRegister, h.base(view{Form: form}))
}

func (h *Handler) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "invalid register form",
			"error", err,
			"request_id", requestID,
		)
		form := h.newForm(r)
		form.Banner = &service.Notification{Level: service.LevelError, Message: models.MsgRegistrationFailed}
		h.render(w, r, http.StatusBadRequest, pageRegister, h.base(view{Form: form}))
		return
	}

	req := models.FromForm(r.PostForm)
	form := h.newForm(r)
	form.Values = req.Redacted()

	rec := &service.Recorder{}
	ctrl := h.controllers.New(rec, rec)
	outcome, err := ctrl.Submit(ctx, req)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			form.Errors = verr.Fields
			h.render(w, r, http.StatusUnprocessableEntity, pageRegister, h.base(view{Form: form}))
		case errors.Is(err, service.ErrSubmissionInFlight):
			h.logger.WarnContext(ctx, "registration already in flight",
				"email", email.Mask(req.Email),
				"request_id", requestID,
			)
			form.Banner = &service.Notification{Level: service.LevelError, Message: models.MsgTransientConflict}
			h.render(w, r, http.StatusConflict, pageRegister, h.base(view{Form: form}))
		default:
			h.logger.ErrorContext(ctx, "registration submit failed",
				"error", err,
				"request_id", requestID,
			)
			form.Banner = &service.Notification{Level: service.LevelError, Message: models.MsgRegistrationFailed}
			h.render(w, r, http.StatusInternalServerError, pageRegister, h.base(view{Form: form}))
		}
		return
	}

	if n := rec.Notifications(); len(n) > 0 {
		form.Banner = &n[len(n)-1]
	}
	form.Step = outcome.Step
	v := view{Form: form}
	if to, after, ok := rec.Redirect(); ok {
		v.Refresh = &refresh{URL: to, Seconds: secondsCeil(after)}
	}

	status := http.StatusOK
	if outcome.Status == models.StatusFailed {
		status = http.StatusBadGateway
	}
	h.render(w, r, status, pageRegister, h.base(v))
}

func (h *Handler) newForm(r *http.Request) *registerForm {
	today := h.controllers.New(nil, nil).Today(r.Context())
	return &registerForm{
		Step:    1,
		Errors:  models.FieldErrors{},
		MaxDate: today.Format(models.DateLayout),
	}
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageVerifyEmail, h.base(view{}))
}

func (h *Handler) handleThankYou(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageThankYou, h.base(view{}))
}

func (h *Handler) legalPage(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := Document(slug)
		if !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		h.render(w, r, http.StatusOK, pageLegal, h.base(view{Doc: &doc}))
	}
}

func (h *Handler) handleLegalJSON(w http.ResponseWriter, r *http.Request) {
	doc, ok := Document(chi.URLParam(r, "doc"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	if err := h.renderer.render(w, status, page, v); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			"page", page,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render page"))
	}
}
