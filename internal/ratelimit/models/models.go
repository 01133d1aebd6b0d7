package models

import "time"

// Result is the outcome of one sliding-window check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is in whole seconds and only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Deny builds the result for a full window whose oldest entry is oldest.
func Deny(limit int, oldest time.Time, window time.Duration, now time.Time) *Result {
	resetAt := oldest.Add(window)
	retry := int((resetAt.Sub(now) + time.Second - 1) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return &Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}
}

// Allow builds the result after an entry was admitted; count includes it.
func Allow(limit, count int, oldest time.Time, window time.Duration) *Result {
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   oldest.Add(window),
	}
}

type ExceededResponse struct {
	Error       string    `json:"error"`
	Description string    `json:"error_description"`
	RetryAfter  int       `json:"retry_after"`
	QuotaLimit  int       `json:"quota_limit"`
	QuotaReset  time.Time `json:"quota_reset"`
}
