package admin

import audit "vektorkite/pkg/platform/audit"

// AuditEventsResponse wraps a page of audit events for operators.
type AuditEventsResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

// RateLimitCountsResponse lists the requests counted in the current window
// per endpoint class.
type RateLimitCountsResponse struct {
	IP     string         `json:"ip"`
	Counts map[string]int `json:"counts"`
}
