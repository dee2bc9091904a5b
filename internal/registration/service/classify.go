package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"

	"vektorkite/internal/registration/models"
	"vektorkite/internal/registration/ports"
	"vektorkite/pkg/platform/sentinel"
)

const foreignKeyViolation = "23503"

var codeKinds = map[string]models.ErrorKind{
	"user_already_exists": models.KindDuplicateAccount,
	"email_exists":        models.KindDuplicateAccount,
	"weak_password":       models.KindWeakPassword,
	"invalid_credentials": models.KindInvalidCredentials,
	foreignKeyViolation:   models.KindTransientConflict,
}

var kindMessages = map[models.ErrorKind]string{
	models.KindDuplicateAccount:   models.MsgDuplicateAccount,
	models.KindWeakPassword:       models.MsgWeakPassword,
	models.KindInvalidCredentials: models.MsgInvalidCredentials,
	models.KindTransientConflict:  models.MsgTransientConflict,
	models.KindUnavailable:        models.MsgUnavailable,
}

// Classify maps a signup failure to a user-facing kind and message. Typed
// error codes win; free-text matching on the backend message is the fallback
// for backends that send none.
func Classify(err error) (models.ErrorKind, string) {
	kind, ok := classifyTyped(err)
	if !ok {
		kind, ok = classifyMessage(collaboratorMessage(err))
	}
	if ok {
		return kind, kindMessages[kind]
	}
	if msg := collaboratorMessage(err); msg != "" {
		return models.KindUpstream, msg
	}
	return models.KindUnknown, models.MsgRegistrationFailed
}

func classifyTyped(err error) (models.ErrorKind, bool) {
	var authErr *ports.AuthError
	if errors.As(err, &authErr) && authErr.Code != "" {
		if kind, ok := codeKinds[authErr.Code]; ok {
			return kind, true
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
		return models.KindTransientConflict, true
	}

	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return models.KindUnavailable, true
	}
	return "", false
}

func classifyMessage(msg string) (models.ErrorKind, bool) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already registered"):
		return models.KindDuplicateAccount, true
	case strings.Contains(lower, "password should be at least"):
		return models.KindWeakPassword, true
	case strings.Contains(lower, "invalid login credentials"):
		return models.KindInvalidCredentials, true
	}
	return "", false
}

// collaboratorMessage prefers the backend's own wording over our wrapping.
func collaboratorMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *ports.AuthError
	if errors.As(err, &authErr) {
		return strings.TrimSpace(authErr.Message)
	}
	return strings.TrimSpace(err.Error())
}
