package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/service"
	"vektorkite/pkg/email"
	"vektorkite/pkg/platform/httputil"
	"vektorkite/pkg/requestcontext"

	dErrors "vektorkite/pkg/domain-errors"
)

// Handler serves the registration JSON API used by the form's scripts.
type Handler struct {
	controllers *service.Factory
	logger      *slog.Logger
}

func New(controllers *service.Factory, logger *slog.Logger) *Handler {
	return &Handler{controllers: controllers, logger: logger}
}

// Register mounts the read-only helpers used while the form is filled in.
// Callers apply the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/register/validate", h.handleValidate)
	r.Get("/api/register/age", h.handleAgeCheck)
}

// RegisterSubmit mounts the submission route on its own so the router can
// rate limit it.
func (h *Handler) RegisterSubmit(r chi.Router) {
	r.Post("/api/register", h.handleRegister)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	rec := &service.Recorder{}
	ctrl := h.controllers.New(rec, rec)
	outcome, err := ctrl.Submit(ctx, &req)
	if err != nil {
		h.writeSubmitError(w, r, &req, err)
		return
	}

	if outcome.Status == models.StatusFailed {
		httputil.WriteJSON(w, http.StatusBadGateway, SubmissionFailedResponse{
			Error:         "registration_failed",
			ErrorKind:     outcome.Kind,
			Message:       outcome.Message,
			Step:          outcome.Step,
			Notifications: rec.Notifications(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(outcome, rec))
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, req *models.RegisterRequest, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.InfoContext(ctx, "registration rejected by validation",
			"fields", len(verr.Fields),
			"request_id", requestID,
		)
		writeValidationError(w, verr)
	case errors.Is(err, service.ErrSubmissionInFlight):
		h.logger.WarnContext(ctx, "registration already in flight",
			"email", email.Mask(req.Email),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
	default:
		h.logger.ErrorContext(ctx, "registration submit failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
	}
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	reg, err := h.controllers.New(nil, nil).Validate(ctx, &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{Valid: true, Age: reg.Age})
}

func (h *Handler) handleAgeCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.controllers.New(nil, nil).Today(ctx)

	result, err := models.AgeCheck(r.URL.Query().Get(models.FieldDateOfBirth), today)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "age check failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func writeValidationError(w http.ResponseWriter, verr *models.ValidationError) {
	httputil.WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Error:            string(dErrors.CodeValidation),
		ErrorDescription: "One or more fields are invalid",
		Fields:           verr.Fields,
	})
}
