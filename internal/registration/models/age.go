package models

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MinimumAge  = 18
	ageVerified = "Age verified: %d years old"
)

// Age returns the number of whole years between dob and today, comparing
// calendar year, month and day. Both are read as civil dates in their own
// locations; callers convert today to the registration time zone first.
func Age(dob, today time.Time) int {
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}

// ParseDateOfBirth parses a YYYY-MM-DD civil date.
func ParseDateOfBirth(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// AgeCheckResult backs the live age hint shown next to the date picker.
type AgeCheckResult struct {
	Age      int    `json:"age"`
	Eligible bool   `json:"eligible"`
	Message  string `json:"message"`
}

// AgeCheck evaluates a date of birth the same way Validate does, without the
// other fields. Invalid or future dates come back as a ValidationError on
// date_of_birth.
func AgeCheck(dob string, today time.Time) (AgeCheckResult, error) {
	parsed, msg := checkDateOfBirth(dob, today)
	if msg != "" && parsed.IsZero() {
		return AgeCheckResult{}, &ValidationError{Fields: FieldErrors{FieldDateOfBirth: msg}}
	}
	age := Age(parsed, today)
	if age < MinimumAge {
		return AgeCheckResult{Age: age, Message: MsgAgeHint}, nil
	}
	return AgeCheckResult{Age: age, Eligible: true, Message: fmt.Sprintf(ageVerified, age)}, nil
}

// checkDateOfBirth returns the parsed date (zero when unusable) and the first
// failing rule's message, if any.
func checkDateOfBirth(raw string, today time.Time) (time.Time, string) {
	if raw == "" {
		return time.Time{}, MsgDOBRequired
	}
	dob, err := ParseDateOfBirth(raw)
	if err != nil {
		return time.Time{}, MsgDOBInvalid
	}
	if civil(dob).After(civil(today)) {
		return time.Time{}, MsgDOBFuture
	}
	if Age(dob, today) < MinimumAge {
		return dob, MsgUnderage
	}
	return dob, ""
}

// civil strips the clock and zone so dates compare as calendar days.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
