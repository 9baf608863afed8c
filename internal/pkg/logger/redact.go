package logger

import "strings"

// RedactEmail masks the local part of an address for safe logging.
// "john.doe@example.com" → "jo***@example.com"; local parts of two
// characters or fewer are fully masked. Values without a domain become "***@***".
func RedactEmail(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return "***@***"
	}
	local, domain := []rune(addr[:at]), addr[at+1:]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}
	return "***@" + domain
}
