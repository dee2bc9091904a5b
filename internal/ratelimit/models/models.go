package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a limit bucket.
type EndpointClass string

const (
	// ClassRegister covers POST /register and POST /api/register.
	ClassRegister EndpointClass = "register"
	// ClassVerify covers POST /api/verify-email.
	ClassVerify EndpointClass = "verify"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// SanitizeKeySegment escapes the key delimiter so a crafted identifier cannot
// address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey builds the bucket key for a client IP and endpoint class.
func NewIPRateLimitKey(ip string, class EndpointClass) string {
	return "ratelimit:ip:" + SanitizeKeySegment(ip) + ":" + string(class)
}
