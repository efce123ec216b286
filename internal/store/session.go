package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ewagner/picnote/internal/model"
)

type SessionStore struct {
	db         *sql.DB
	ttl        time.Duration
	tokenBytes int
}

// NewSessionStore creates a session store issuing tokens of tokenBytes
// random bytes (hex encoded) that expire ttl after creation.
func NewSessionStore(db *sql.DB, ttl time.Duration, tokenBytes int) *SessionStore {
	return &SessionStore{db: db, ttl: ttl, tokenBytes: tokenBytes}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.Token, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, token, expires_at, created_at`

// Create generates a new session with a crypto-random token and absolute
// expiry. Expired rows are opportunistically swept on the way.
func (s *SessionStore) Create() (*model.Session, error) {
	tokenBytes := make([]byte, s.tokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO sessions (token, expires_at, created_at) VALUES (?, ?, ?)`,
		token, now.Add(s.ttl), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	s.DeleteExpired()

	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the session for the given token regardless of expiry,
// or nil if not found.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// Validate reports whether the token names a live session. An expired
// session is deleted on sight so it can never be replayed; unknown and
// expired tokens are indistinguishable to the caller.
func (s *SessionStore) Validate(token string) (bool, error) {
	sess, err := s.GetByToken(token)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if !sess.ExpiresAt.After(time.Now().UTC()) {
		if err := s.Revoke(token); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Revoke deletes the session if present; a no-op for unknown tokens.
func (s *SessionStore) Revoke(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry and returns the
// number deleted.
func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
