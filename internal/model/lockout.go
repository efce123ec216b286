package model

import "time"

// LockoutState is the single global failed-attempt record shared by every
// caller. LockoutUntil is non-nil only while a trip is in effect; reads
// through the store fold an elapsed deadline back to the open state, so a
// non-nil value is always in the future at the time it was read.
type LockoutState struct {
	FailedAttempts int        `json:"failed_attempts"`
	LockoutUntil   *time.Time `json:"lockout_until,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Locked reports whether the state holds an unexpired deadline at the
// given instant.
func (l *LockoutState) Locked(now time.Time) bool {
	return l.LockoutUntil != nil && l.LockoutUntil.After(now)
}
