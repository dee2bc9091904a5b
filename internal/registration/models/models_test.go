package models

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vektorkite/pkg/domain-errors"
	"vektorkite/pkg/testutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func validRequest() *RegisterRequest {
	return &RegisterRequest{
		FullName:        "John Doe",
		Email:           "john@example.com",
		Phone:           "+264811234567",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		DateOfBirth:     "1990-01-01",
		AcceptTerms:     true,
		AcceptPrivacy:   true,
	}
}

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestValidate_ValidInput(t *testing.T) {
	today := date(2024, time.June, 1)

	reg, err := Validate(validRequest(), today)

	require.NoError(t, err)
	assert.Equal(t, "John Doe", reg.FullName)
	assert.Equal(t, "john@example.com", reg.Email)
	assert.Equal(t, 34, reg.Age)
	assert.Equal(t, "1990-01-01", reg.DateOfBirthString())
}

func TestValidate_NilRequestIsProgrammingError(t *testing.T) {
	_, err := Validate(nil, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestValidate_Normalizes(t *testing.T) {
	req := validRequest()
	req.FullName = "  Jane Doe  "
	req.Email = "  Jane@Example.COM "
	req.Password = " spaced "
	req.ConfirmPassword = " spaced "

	reg, err := Validate(req, date(2024, time.June, 1))

	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", reg.FullName)
	assert.Equal(t, "jane@example.com", reg.Email)
	assert.Equal(t, " spaced ", reg.Password, "passwords are never trimmed")
}

func TestValidate_FieldRules(t *testing.T) {
	today := date(2024, time.June, 1)

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
		msg    string
	}{
		{"short name", func(r *RegisterRequest) { r.FullName = "J" }, FieldFullName, MsgNameTooShort},
		{"long name", func(r *RegisterRequest) { r.FullName = strings.Repeat("a", 101) }, FieldFullName, MsgNameTooLong},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, FieldEmail, MsgEmailInvalid},
		{"empty email", func(r *RegisterRequest) { r.Email = "" }, FieldEmail, MsgEmailInvalid},
		{"short phone", func(r *RegisterRequest) { r.Phone = "12345" }, FieldPhone, MsgPhoneTooShort},
		{"long phone", func(r *RegisterRequest) { r.Phone = "1234567890123456" }, FieldPhone, MsgPhoneTooLong},
		{"letters in phone", func(r *RegisterRequest) { r.Phone = "081-ABC-4567" }, FieldPhone, MsgPhoneInvalid},
		{"short password", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }, FieldPassword, MsgPasswordTooShort},
		{"long password", func(r *RegisterRequest) {
			r.Password = strings.Repeat("p", 51)
			r.ConfirmPassword = r.Password
		}, FieldPassword, MsgPasswordTooLong},
		{"missing dob", func(r *RegisterRequest) { r.DateOfBirth = "" }, FieldDateOfBirth, MsgDOBRequired},
		{"malformed dob", func(r *RegisterRequest) { r.DateOfBirth = "01/01/1990" }, FieldDateOfBirth, MsgDOBInvalid},
		{"future dob", func(r *RegisterRequest) { r.DateOfBirth = "2024-06-02" }, FieldDateOfBirth, MsgDOBFuture},
		{"underage", func(r *RegisterRequest) { r.DateOfBirth = "2010-01-01" }, FieldDateOfBirth, MsgUnderage},
		{"terms", func(r *RegisterRequest) { r.AcceptTerms = false }, FieldAcceptTerms, MsgTermsRequired},
		{"privacy", func(r *RegisterRequest) { r.AcceptPrivacy = false }, FieldAcceptPrivacy, MsgPrivacyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := Validate(req, today)

			fields := fieldErrors(t, err)
			assert.Equal(t, FieldErrors{tt.field: tt.msg}, fields)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestValidate_LengthsCountCharacters(t *testing.T) {
	req := validRequest()
	// 100 two-byte runes: at the character limit, over it in bytes.
	req.FullName = strings.Repeat("é", 100)

	_, err := Validate(req, date(2024, time.June, 1))
	require.NoError(t, err)
}

func TestValidate_ReportsAllFieldsTogether(t *testing.T) {
	req := &RegisterRequest{
		FullName:        "J",
		Email:           "nope",
		Phone:           "abc",
		Password:        "123",
		ConfirmPassword: "456",
	}

	_, err := Validate(req, date(2024, time.June, 1))

	fields := fieldErrors(t, err)
	assert.Equal(t, FieldErrors{
		FieldFullName:        MsgNameTooShort,
		FieldEmail:           MsgEmailInvalid,
		FieldPhone:           MsgPhoneTooShort,
		FieldPassword:        MsgPasswordTooShort,
		FieldConfirmPassword: MsgPasswordsMismatch,
		FieldDateOfBirth:     MsgDOBRequired,
		FieldAcceptTerms:     MsgTermsRequired,
		FieldAcceptPrivacy:   MsgPrivacyRequired,
	}, fields)
}

func TestValidate_PasswordMismatchOnlyOnConfirmField(t *testing.T) {
	for _, password := range []string{"secret1", "x", strings.Repeat("y", 60)} {
		req := validRequest()
		req.Password = password
		req.ConfirmPassword = password + "!"

		_, err := Validate(req, date(2024, time.June, 1))

		fields := fieldErrors(t, err)
		assert.Equal(t, MsgPasswordsMismatch, fields[FieldConfirmPassword])
		assert.NotEqual(t, MsgPasswordsMismatch, fields[FieldPassword])
	}
}

func TestValidate_IsRepeatable(t *testing.T) {
	today := date(2024, time.June, 1)
	first, err1 := Validate(validRequest(), today)
	second, err2 := Validate(validRequest(), today)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestAge(t *testing.T) {
	tests := []struct {
		name  string
		dob   time.Time
		today time.Time
		want  int
	}{
		{"birthday not yet reached", date(2006, time.June, 15), date(2024, time.March, 1), 17},
		{"exactly eighteen", date(2006, time.March, 1), date(2024, time.March, 1), 18},
		{"one day short of eighteen", date(2006, time.March, 2), date(2024, time.March, 1), 17},
		{"same month earlier day", date(2000, time.May, 10), date(2024, time.May, 20), 24},
		{"same month later day", date(2000, time.May, 25), date(2024, time.May, 20), 23},
		{"leap day birthday before march", date(2004, time.February, 29), date(2022, time.February, 28), 17},
		{"leap day birthday on march first", date(2004, time.February, 29), date(2022, time.March, 1), 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Age(tt.dob, tt.today))
		})
	}
}

func TestValidate_AgeBoundary(t *testing.T) {
	today := date(2024, time.March, 1)

	testutil.Given(t, "a date of birth exactly 18 years ago", func(t *testing.T) {
		req := validRequest()
		req.DateOfBirth = "2006-03-01"
		reg, err := Validate(req, today)
		require.NoError(t, err)
		assert.Equal(t, 18, reg.Age)
	})

	testutil.Given(t, "a date of birth one day short of 18 years", func(t *testing.T) {
		req := validRequest()
		req.DateOfBirth = "2006-03-02"
		_, err := Validate(req, today)
		assert.Equal(t, MsgUnderage, fieldErrors(t, err)[FieldDateOfBirth])
	})

	testutil.Given(t, "a birthday later in the year than today", func(t *testing.T) {
		req := validRequest()
		req.DateOfBirth = "2006-06-15"
		_, err := Validate(req, today)
		assert.Equal(t, MsgUnderage, fieldErrors(t, err)[FieldDateOfBirth])
	})
}

func TestAgeCheck(t *testing.T) {
	today := date(2024, time.March, 1)

	res, err := AgeCheck("1990-01-01", today)
	require.NoError(t, err)
	assert.Equal(t, AgeCheckResult{Age: 34, Eligible: true, Message: "Age verified: 34 years old"}, res)

	res, err = AgeCheck("2006-06-15", today)
	require.NoError(t, err)
	assert.Equal(t, AgeCheckResult{Age: 17, Eligible: false, Message: MsgAgeHint}, res)

	_, err = AgeCheck("2030-01-01", today)
	assert.Equal(t, MsgDOBFuture, fieldErrors(t, err)[FieldDateOfBirth])

	_, err = AgeCheck("", today)
	assert.Equal(t, MsgDOBRequired, fieldErrors(t, err)[FieldDateOfBirth])
}

func TestRegisterRequest_JSONAlias(t *testing.T) {
	var req RegisterRequest
	require.NoError(t, json.Unmarshal([]byte(`{"password":"secret1","confirmPassword":"secret1"}`), &req))
	assert.Equal(t, "secret1", req.ConfirmPassword)

	require.NoError(t, json.Unmarshal([]byte(`{"confirm_password":"a","confirmPassword":"b"}`), &req))
	assert.Equal(t, "a", req.ConfirmPassword)
}

func TestFromForm(t *testing.T) {
	form := url.Values{
		FieldFullName:      {"John Doe"},
		FieldAcceptTerms:   {"on"},
		FieldAcceptPrivacy: {""},
	}
	req := FromForm(form)
	assert.Equal(t, "John Doe", req.FullName)
	assert.True(t, req.AcceptTerms)
	assert.False(t, req.AcceptPrivacy)
}

func TestRedacted_ClearsSecrets(t *testing.T) {
	r := validRequest().Redacted()
	assert.Empty(t, r.Password)
	assert.Empty(t, r.ConfirmPassword)
	assert.Equal(t, "John Doe", r.FullName)
}
