package models

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Field identifiers used as FieldErrors keys and as form input names.
const (
	FieldFullName        = "full_name"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldDateOfBirth     = "date_of_birth"
	FieldAcceptTerms     = "accept_terms"
	FieldAcceptPrivacy   = "accept_privacy"
)

// RegisterRequest is the raw, user-controlled signup input.
type RegisterRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DateOfBirth     string `json:"date_of_birth"`
	AcceptTerms     bool   `json:"accept_terms"`
	AcceptPrivacy   bool   `json:"accept_privacy"`
}

// UnmarshalJSON also accepts confirmPassword, the field name older clients send.
func (r *RegisterRequest) UnmarshalJSON(data []byte) error {
	type plain RegisterRequest
	var aux struct {
		plain
		ConfirmPasswordAlt string `json:"confirmPassword"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RegisterRequest(aux.plain)
	if r.ConfirmPassword == "" {
		r.ConfirmPassword = aux.ConfirmPasswordAlt
	}
	return nil
}

// FromForm reads a form-encoded submission from the server-rendered page.
func FromForm(form url.Values) *RegisterRequest {
	return &RegisterRequest{
		FullName:        form.Get(FieldFullName),
		Email:           form.Get(FieldEmail),
		Phone:           form.Get(FieldPhone),
		Password:        form.Get(FieldPassword),
		ConfirmPassword: form.Get(FieldConfirmPassword),
		DateOfBirth:     form.Get(FieldDateOfBirth),
		AcceptTerms:     checked(form.Get(FieldAcceptTerms)),
		AcceptPrivacy:   checked(form.Get(FieldAcceptPrivacy)),
	}
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Normalize trims the free-text fields and lower-cases the email.
// Passwords are compared and submitted exactly as typed.
func (r *RegisterRequest) Normalize() {
	if r == nil {
		return
	}
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
}

// Redacted returns a copy safe to re-render: password fields are cleared.
func (r RegisterRequest) Redacted() RegisterRequest {
	r.Password = ""
	r.ConfirmPassword = ""
	return r
}
