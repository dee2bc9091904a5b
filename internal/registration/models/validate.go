package models

import (
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	dErrors "vektorkite/pkg/domain-errors"
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]*$`)

// NormalizedRegistration is a fully validated record, ready for signup.
type NormalizedRegistration struct {
	FullName      string
	Email         string
	Phone         string
	Password      string
	DateOfBirth   time.Time
	Age           int
	AcceptTerms   bool
	AcceptPrivacy bool
}

// DateOfBirthString formats the date of birth as submitted.
func (n *NormalizedRegistration) DateOfBirthString() string {
	return n.DateOfBirth.Format(DateLayout)
}

// Validate normalizes req in place and checks every field independently.
// All failing fields are reported together; a field reports only its first
// failing rule. today must be read once per call by the caller.
func Validate(req *RegisterRequest, today time.Time) (*NormalizedRegistration, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "registration request is required")
	}
	req.Normalize()

	fields := FieldErrors{}
	set := func(field, msg string) {
		if msg != "" {
			fields[field] = msg
		}
	}

	set(FieldFullName, lengthRule(req.FullName, 2, 100, MsgNameTooShort, MsgNameTooLong))

	if !govalidator.IsEmail(req.Email) {
		set(FieldEmail, MsgEmailInvalid)
	}

	phoneMsg := lengthRule(req.Phone, 10, 15, MsgPhoneTooShort, MsgPhoneTooLong)
	if phoneMsg == "" && !phonePattern.MatchString(req.Phone) {
		phoneMsg = MsgPhoneInvalid
	}
	set(FieldPhone, phoneMsg)

	set(FieldPassword, lengthRule(req.Password, 6, 50, MsgPasswordTooShort, MsgPasswordTooLong))

	if req.ConfirmPassword != req.Password {
		set(FieldConfirmPassword, MsgPasswordsMismatch)
	}

	dob, dobMsg := checkDateOfBirth(req.DateOfBirth, today)
	set(FieldDateOfBirth, dobMsg)

	if !req.AcceptTerms {
		set(FieldAcceptTerms, MsgTermsRequired)
	}
	if !req.AcceptPrivacy {
		set(FieldAcceptPrivacy, MsgPrivacyRequired)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &NormalizedRegistration{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Password:      req.Password,
		DateOfBirth:   dob,
		Age:           Age(dob, today),
		AcceptTerms:   req.AcceptTerms,
		AcceptPrivacy: req.AcceptPrivacy,
	}, nil
}

// lengthRule counts characters, not bytes.
func lengthRule(s string, minLen, maxLen int, tooShort, tooLong string) string {
	n := utf8.RuneCountInString(s)
	switch {
	case n < minLen:
		return tooShort
	case n > maxLen:
		return tooLong
	}
	return ""
}
