// Package handler exposes email verification over JSON for the verify-email page.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vektorkite/internal/verification/service"
	"vektorkite/pkg/platform/httputil"
	"vektorkite/pkg/requestcontext"
)

type Verifier interface {
	Verify(ctx context.Context, req service.VerifyRequest) *service.Result
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/verify-email", h.handleVerify)
}

// VerifyEmailRequest is what the page posts: either the raw URL fragment or
// the already-split token fields.
type VerifyEmailRequest struct {
	Fragment     string `json:"fragment"`
	Type         string `json:"type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (r VerifyEmailRequest) toService() service.VerifyRequest {
	if r.Fragment != "" {
		return service.ParseFragment(r.Fragment)
	}
	return service.VerifyRequest{
		Type:         r.Type,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
}

type VerifyEmailResponse struct {
	*service.Result
	RedirectAfterMs int64 `json:"redirect_after_ms"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body VerifyEmailRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.logger.WarnContext(ctx, "invalid verify request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	req := body.toService()
	req.CurrentAccessToken = requestcontext.AccessToken(ctx)

	result := h.verifier.Verify(ctx, req)
	httputil.WriteJSON(w, http.StatusOK, VerifyEmailResponse{
		Result:          result,
		RedirectAfterMs: result.RedirectAfter.Milliseconds(),
	})
}
