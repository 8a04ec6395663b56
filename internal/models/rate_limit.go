package models

import "time"

// RateLimitWindow is a fixed-size request window for one (IP, endpoint) pair.
// WindowStart marks the window's opening; the count resets when a request
// arrives after WindowStart + the configured window duration.
type RateLimitWindow struct {
	IPAddress    string
	Endpoint     string
	RequestCount int
	WindowStart  time.Time
}

// Expired reports whether the window has run its course at the given instant.
func (w *RateLimitWindow) Expired(now time.Time, windowDuration time.Duration) bool {
	return !now.Before(w.WindowStart.Add(windowDuration))
}
