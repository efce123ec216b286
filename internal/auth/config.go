package auth

import "time"

// Config holds the tunable constants of the authentication core. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// MinSequenceLength and MaxSequenceLength bound the picture-password
	// length (inclusive).
	MinSequenceLength int
	MaxSequenceLength int
	// AlphabetSize is the number of distinct image IDs; valid IDs run
	// 1..AlphabetSize.
	AlphabetSize int
	// FailureThreshold is the failed-attempt count that trips the lockout.
	FailureThreshold int
	// LockoutDuration is how long authentication stays refused after a trip.
	LockoutDuration time.Duration
	// SessionDuration is the absolute lifetime of an issued token.
	SessionDuration time.Duration
	// TokenBytes is the entropy of a session token before hex encoding.
	TokenBytes int
}

// DefaultConfig returns the documented defaults: sequences of 3-5 unique
// images from a 12-image alphabet, lockout after 3 failures for 1 hour,
// 24-hour sessions with 32-byte tokens.
func DefaultConfig() Config {
	return Config{
		MinSequenceLength: 3,
		MaxSequenceLength: 5,
		AlphabetSize:      12,
		FailureThreshold:  3,
		LockoutDuration:   time.Hour,
		SessionDuration:   24 * time.Hour,
		TokenBytes:        32,
	}
}
