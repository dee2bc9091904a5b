package email

import "strings"

// Normalize trims surrounding whitespace and lower-cases the address so the
// same mailbox always maps to the same key.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Mask hides most of the local part for logs and audit events:
// "john.doe@example.com" becomes "jo***@example.com".
func Mask(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := address[:at], address[at+1:]
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return local[:keep] + "***@" + domain
}
