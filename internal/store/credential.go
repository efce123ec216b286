package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ewagner/picnote/internal/model"
)

// ErrInvalidSequence marks a candidate sequence that violates the length,
// alphabet, or uniqueness rules. Format violations are client errors and
// must never be counted as failed guesses.
var ErrInvalidSequence = errors.New("invalid credential sequence")

// SequenceRules bounds a valid picture-password sequence.
type SequenceRules struct {
	MinLength    int
	MaxLength    int
	AlphabetSize int // image IDs run 1..AlphabetSize
}

type CredentialStore struct {
	db    *sql.DB
	rules SequenceRules
}

func NewCredentialStore(db *sql.DB, rules SequenceRules) *CredentialStore {
	return &CredentialStore{db: db, rules: rules}
}

// Validate checks a sequence against the configured rules without touching
// the database.
func (s *CredentialStore) Validate(sequence []int) error {
	if len(sequence) < s.rules.MinLength || len(sequence) > s.rules.MaxLength {
		return fmt.Errorf("sequence length %d outside [%d,%d]: %w",
			len(sequence), s.rules.MinLength, s.rules.MaxLength, ErrInvalidSequence)
	}
	seen := make(map[int]bool, len(sequence))
	for _, id := range sequence {
		if id < 1 || id > s.rules.AlphabetSize {
			return fmt.Errorf("image id %d outside alphabet [1,%d]: %w",
				id, s.rules.AlphabetSize, ErrInvalidSequence)
		}
		if seen[id] {
			return fmt.Errorf("image id %d repeated: %w", id, ErrInvalidSequence)
		}
		seen[id] = true
	}
	return nil
}

// encodeSequence produces the canonical order-sensitive text form that gets
// hashed. Distinct sequences always encode distinctly.
func encodeSequence(sequence []int) string {
	parts := make([]string, len(sequence))
	for i, id := range sequence {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Get returns the credential record, or nil if setup has not happened yet.
func (s *CredentialStore) Get() (*model.Credential, error) {
	row := s.db.QueryRow(`SELECT sequence_length, created_at, updated_at FROM credential WHERE id = 1`)
	var c model.Credential
	err := row.Scan(&c.SequenceLength, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

// Set validates the sequence and replaces the credential wholesale. Only a
// bcrypt hash of the canonical encoding is persisted.
func (s *CredentialStore) Set(sequence []int) (*model.Credential, error) {
	if err := s.Validate(sequence); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(encodeSequence(sequence)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash sequence: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO credential (id, sequence_hash, sequence_length, created_at, updated_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET sequence_hash = excluded.sequence_hash, sequence_length = excluded.sequence_length, updated_at = excluded.updated_at`,
		string(hash), len(sequence), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("set credential: %w", err)
	}
	return s.Get()
}

// Matches reports whether the sequence equals the stored credential, order
// and length included. A missing credential matches nothing.
func (s *CredentialStore) Matches(sequence []int) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sequence_hash FROM credential WHERE id = 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get credential hash: %w", err)
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(encodeSequence(sequence)))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare sequence: %w", err)
	}
	return true, nil
}
