package handler

import (
	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/service"
)

// ValidationErrorResponse extends the error envelope with per-field messages.
type ValidationErrorResponse struct {
	Error            string             `json:"error"`
	ErrorDescription string             `json:"error_description"`
	Fields           models.FieldErrors `json:"fields"`
}

type RegisterResponse struct {
	Status          models.Status          `json:"status"`
	UserID          string                 `json:"user_id,omitempty"`
	Message         string                 `json:"message"`
	Step            int                    `json:"step"`
	RedirectTo      string                 `json:"redirect_to,omitempty"`
	RedirectAfterMs int64                  `json:"redirect_after_ms,omitempty"`
	Notifications   []service.Notification `json:"notifications"`
}

// SubmissionFailedResponse reports a classified backend failure.
type SubmissionFailedResponse struct {
	Error         string                 `json:"error"`
	ErrorKind     models.ErrorKind       `json:"error_kind"`
	Message       string                 `json:"message"`
	Step          int                    `json:"step"`
	Notifications []service.Notification `json:"notifications"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
	Age   int  `json:"age"`
}

func toRegisterResponse(o *models.Outcome, rec *service.Recorder) RegisterResponse {
	resp := RegisterResponse{
		Status:        o.Status,
		UserID:        o.UserID,
		Message:       o.Message,
		Step:          o.Step,
		Notifications: rec.Notifications(),
	}
	if to, after, ok := rec.Redirect(); ok {
		resp.RedirectTo = to
		resp.RedirectAfterMs = after.Milliseconds()
	}
	return resp
}
