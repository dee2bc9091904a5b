package models

import (
	"sort"
	"strings"

	dErrors "vektorkite/pkg/domain-errors"
)

const (
	MsgNameTooShort      = "Name must be at least 2 characters"
	MsgNameTooLong       = "Name is too long"
	MsgEmailInvalid      = "Please enter a valid email address"
	MsgPhoneTooShort     = "Phone number must be at least 10 digits"
	MsgPhoneTooLong      = "Phone number is too long"
	MsgPhoneInvalid      = "Please enter a valid phone number"
	MsgPasswordTooShort  = "Password must be at least 6 characters"
	MsgPasswordTooLong   = "Password is too long"
	MsgPasswordsMismatch = "Passwords don't match"
	MsgDOBRequired       = "Date of birth is required"
	MsgDOBInvalid        = "Please enter a valid date"
	MsgDOBFuture         = "Date of birth cannot be in the future"
	MsgUnderage          = "You must be at least 18 years old to register"
	MsgAgeHint           = "You must be 18 or older to register"
	MsgTermsRequired     = "You must accept the Terms & Conditions"
	MsgPrivacyRequired   = "You must accept the Privacy Policy"
)

// FieldErrors maps a field id to the message of its first failing rule.
type FieldErrors map[string]string

// ValidationError carries every field that failed. It unwraps to a
// validation_error domain error so HTTP translation stays uniform.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Unwrap() error {
	return dErrors.New(dErrors.CodeValidation, "validation failed")
}
