// Package email normalizes and validates email addresses the same way across
// form submissions, CSV imports and reminder recipients.
package email

import (
	"strings"

	"github.com/asaskevich/govalidator"
)

// maxLength is the RFC 5321 path limit.
const maxLength = 254

// Normalize trims surrounding whitespace and lower-cases the address.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsValid reports whether addr is a syntactically valid address.
func IsValid(addr string) bool {
	if addr == "" || len(addr) > maxLength {
		return false
	}
	return govalidator.IsEmail(addr)
}

// Domain returns the part after the last "@", or "".
func Domain(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}
