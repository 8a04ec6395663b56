package auth

import (
	"net/http"
	"time"
)

const (
	RememberCookieName = "remember_token"
	CsrfCookieName     = "csrf_token"

	// Remember cookies are scoped to the session-restore path so the raw
	// token is not replayed to every storefront endpoint.
	rememberCookiePath = "/auth"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetRememberCookie sets the raw remember-me token in an httpOnly cookie.
// The value exists only here and in the client; the server keeps a hash.
func SetRememberCookie(w http.ResponseWriter, rawToken string, ttl time.Duration, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     RememberCookieName,
		Value:    rawToken,
		Path:     rememberCookiePath,
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// SetCsrfCookie sets a CSRF token in a readable cookie (not httpOnly).
// JavaScript reads this and echoes it in the X-CSRF-Token header.
func SetCsrfCookie(w http.ResponseWriter, csrfToken string, ttl time.Duration, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     CsrfCookieName,
		Value:    csrfToken,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: false,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// ClearRememberCookie clears the remember-me cookie on logout
func ClearRememberCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     RememberCookieName,
		Value:    "",
		Path:     rememberCookiePath,
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// ClearCsrfCookie clears the CSRF token cookie
func ClearCsrfCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     CsrfCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// GetRememberCookie retrieves the raw remember-me token from cookies
func GetRememberCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RememberCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
