package models

import "time"

// RequestMeta carries per-request facts that security components need.
// It is built once by middleware from the incoming request and passed
// explicitly; components never read ambient request state.
type RequestMeta struct {
	ClientIP   string
	UserAgent  string
	ReceivedAt time.Time
}
