package models

import "time"

// Class groups endpoints that share one limit.
type Class string

const (
	ClassInterview   Class = "interview"
	ClassEvidence    Class = "evidence"
	ClassApplication Class = "application"
)

// Limit is the number of requests allowed per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds and only set when the request is denied.
	RetryAfter int
}

// ExceededResponse is the API response when an actor runs out of requests.
type ExceededResponse struct {
	Error          string    `json:"error"`
	Message        string    `json:"message"`
	QuotaLimit     int       `json:"quota_limit"`
	QuotaRemaining int       `json:"quota_remaining"`
	QuotaReset     time.Time `json:"quota_reset"`
	RetryAfter     int       `json:"retry_after"`
}

// Key builds the bucket key for an actor and class.
func Key(class Class, actor string) string {
	return "seriosity:ratelimit:" + string(class) + ":" + actor
}
