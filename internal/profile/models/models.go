// Package models holds the provider profile row kept next to the auth account.
package models

import (
	"time"

	"vektorkite/internal/registration/ports"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
)

// Record is a stored provider profile including its verification state.
type Record struct {
	ports.Profile
	EmailVerified      bool
	EmailVerifiedAt    *time.Time
	VerificationStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
