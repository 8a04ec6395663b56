package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Prevent MIME sniffing away from declared Content-Type
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Legacy XSS filter for older browsers
			w.Header().Set("X-XSS-Protection", "1; mode=block")

			// Send referrer only for same-origin requests
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			var csp string
			if config.Env == "production" {
				csp = "default-src 'self'; " +
					"script-src 'self'; " +
					"style-src 'self' 'unsafe-inline'; " +
					"img-src 'self' data: https:; " +
					"font-src 'self'; " +
					"connect-src 'self'; " +
					"frame-ancestors 'none'; " +
					"base-uri 'self'; " +
					"form-action 'self'"
			} else {
				// Lenient CSP in development so hot reloading keeps working
				csp = "default-src 'self' http: https: ws:; " +
					"script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https: ws:; " +
					"style-src 'self' 'unsafe-inline' http: https:; " +
					"img-src 'self' data: https: http:; " +
					"font-src 'self' data: http: https:; " +
					"connect-src 'self' http: https: ws: wss:; " +
					"frame-ancestors 'self'; " +
					"base-uri 'self'; " +
					"form-action 'self'"
			}
			w.Header().Set("Content-Security-Policy", csp)

			// HSTS only over HTTPS in production
			if config.Env == "production" && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			// Restrict access to sensitive browser APIs
			w.Header().Set("Permissions-Policy",
				"accelerometer=(), "+
					"camera=(), "+
					"geolocation=(), "+
					"gyroscope=(), "+
					"magnetometer=(), "+
					"microphone=(), "+
					"payment=(), "+
					"usb=()",
			)

			w.Header().Set("X-DNS-Prefetch-Control", "off")

			if config.Env == "production" {
				w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
			} else {
				w.Header().Set("Cross-Origin-Embedder-Policy", "credentialless")
			}

			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

			next.ServeHTTP(w, r)
		})
	}
}
