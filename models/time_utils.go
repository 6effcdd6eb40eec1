package models

import "time"

// CooldownRemaining returns how long until a new emission is allowed.
// A zero last timestamp means no emission happened yet.
func CooldownRemaining(last, now time.Time, window time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}
