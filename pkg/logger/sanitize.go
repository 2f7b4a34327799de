package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		// Mask all but the TLD
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString reports whether the query string carries a credential
// or verification code and must be redacted as a whole.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"token",
		"access_token",
		"id_token",
		"secret",
		"email",
		"pin",
		"code",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param+"=") {
			return true
		}
	}
	return false
}

// MaskPIN keeps the first character of a verification code.
func MaskPIN(pin string) string {
	if len(pin) <= 1 {
		return strings.Repeat("*", len(pin))
	}
	return pin[:1] + strings.Repeat("*", len(pin)-1)
}
