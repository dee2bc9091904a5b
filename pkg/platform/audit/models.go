package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	id "vektorkite/pkg/domain"
	"vektorkite/pkg/platform/privacy"
	"vektorkite/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: account
	// creation and acceptance of terms and privacy policy.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and funnel visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the registration and verification flows. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	Action    string        `json:"action"`
	// Subject is the masked email address; raw addresses never reach audit sinks.
	Subject   string `json:"subject,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// ClientIP is anonymized to its network prefix.
	ClientIP string `json:"client_ip,omitempty"`
	Browser  string `json:"browser,omitempty"`
	OS       string `json:"os,omitempty"`
	Mobile   bool   `json:"mobile"`
}

type AuditEvent string

const (
	EventRegistrationSubmitted    AuditEvent = "registration_submitted"
	EventRegistrationFailed       AuditEvent = "registration_failed"
	EventEmailVerified            AuditEvent = "email_verified"
	EventEmailVerificationFailed  AuditEvent = "email_verification_failed"
	EventRateLimitExceeded        AuditEvent = "rate_limit_exceeded"
	EventProfileVerificationStale AuditEvent = "profile_verification_stale"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRegistrationSubmitted: CategoryCompliance,
	EventEmailVerified:         CategoryCompliance,

	EventRateLimitExceeded:       CategorySecurity,
	EventEmailVerificationFailed: CategorySecurity,

	EventRegistrationFailed:       CategoryOperations,
	EventProfileVerificationStale: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event enriched with the request metadata carried by ctx:
// request id, anonymized client IP and the parsed user agent.
func NewEvent(ctx context.Context, action AuditEvent) Event {
	e := Event{
		ID:        uuid.NewString(),
		Category:  action.Category(),
		Timestamp: requestcontext.Now(ctx),
		Action:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		e.ClientIP = privacy.AnonymizeIP(ip)
	}
	if raw := requestcontext.UserAgent(ctx); raw != "" {
		ua := useragent.New(raw)
		browser, version := ua.Browser()
		if version != "" {
			browser += " " + version
		}
		e.Browser = browser
		e.OS = ua.OS()
		e.Mobile = ua.Mobile()
	}
	return e
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can serve the operator audit view.
type Reader interface {
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
