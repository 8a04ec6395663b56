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

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// TruncatedToken returns a short prefix of a token safe for audit detail.
// Submitted CSRF or remember-me values never land in logs whole.
func TruncatedToken(token string) string {
	const keep = 8
	if token == "" {
		return "[empty]"
	}
	if len(token) <= keep {
		return token[:1] + "..."
	}
	return token[:keep] + "..."
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password": true,
		"token":    true,
		"secret":   true,
		"email":    true,
		"auth":     true,
		"csrf":     true,
		"remember": true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
