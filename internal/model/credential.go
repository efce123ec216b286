package model

import "time"

// Credential is the singleton picture-password record. The sequence itself
// is only stored as a hash; callers learn whether a credential exists and
// when it changed, never its contents.
type Credential struct {
	SequenceLength int       `json:"sequence_length"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
