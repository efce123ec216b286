// Package auth composes the credential, lockout, and session stores into
// the authentication operations the rest of the application calls. It is
// the only component that touches those records.
package auth

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/ewagner/picnote/internal/model"
	"github.com/ewagner/picnote/internal/store"
)

// ErrInvalidFormat marks a sequence outside the length/alphabet/uniqueness
// rules. It is a client error, distinct from a wrong guess, and never
// consumes a failed attempt.
var ErrInvalidFormat = store.ErrInvalidSequence

// ErrNotSetUp is returned by AttemptLogin before any credential exists.
var ErrNotSetUp = errors.New("no credential has been set up")

type Service struct {
	credentials *store.CredentialStore
	lockouts    *store.LockoutStore
	sessions    *store.SessionStore
	logger      *slog.Logger
}

func NewService(db *sql.DB, cfg Config, logger *slog.Logger) *Service {
	rules := store.SequenceRules{
		MinLength:    cfg.MinSequenceLength,
		MaxLength:    cfg.MaxSequenceLength,
		AlphabetSize: cfg.AlphabetSize,
	}
	return &Service{
		credentials: store.NewCredentialStore(db, rules),
		lockouts:    store.NewLockoutStore(db, cfg.FailureThreshold, cfg.LockoutDuration),
		sessions:    store.NewSessionStore(db, cfg.SessionDuration, cfg.TokenBytes),
		logger:      logger,
	}
}

// LoginResult is the outcome of an attempt: either a token, or the lockout
// arithmetic the client needs to render what happened.
type LoginResult struct {
	Token             string     `json:"token,omitempty"`
	Locked            bool       `json:"locked"`
	LockoutUntil      *time.Time `json:"lockout_until,omitempty"`
	FailedAttempts    int        `json:"failed_attempts"`
	AttemptsRemaining int        `json:"attempts_remaining"`
}

// IsSetup reports whether a credential exists. While false the application
// is in first-run mode.
func (s *Service) IsSetup() (bool, error) {
	c, err := s.credentials.Get()
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

// SetCredential validates and stores the sequence, clears the lockout, and
// mints a session, so a successful setup leaves the caller logged in.
func (s *Service) SetCredential(sequence []int) (string, error) {
	if _, err := s.credentials.Set(sequence); err != nil {
		return "", err
	}
	if err := s.lockouts.Reset(); err != nil {
		return "", err
	}
	sess, err := s.sessions.Create()
	if err != nil {
		return "", err
	}
	s.logger.Info("credential set", "sequence_length", len(sequence))
	return sess.Token, nil
}

// AttemptLogin evaluates a candidate sequence. The order is fixed: lockout
// check, then credential comparison, then failure recording. A locked
// state short-circuits before the credential is ever consulted, and a
// failure is only recorded for a well-formed wrong guess.
func (s *Service) AttemptLogin(sequence []int) (*LoginResult, error) {
	if err := s.credentials.Validate(sequence); err != nil {
		return nil, err
	}

	setup, err := s.IsSetup()
	if err != nil {
		return nil, err
	}
	if !setup {
		return nil, ErrNotSetUp
	}

	status, err := s.lockouts.Status()
	if err != nil {
		return nil, err
	}
	if status.Locked(time.Now().UTC()) {
		return s.result(status), nil
	}

	match, err := s.credentials.Matches(sequence)
	if err != nil {
		return nil, err
	}
	if match {
		if err := s.lockouts.Reset(); err != nil {
			return nil, err
		}
		sess, err := s.sessions.Create()
		if err != nil {
			return nil, err
		}
		return &LoginResult{Token: sess.Token, AttemptsRemaining: s.lockouts.Threshold()}, nil
	}

	state, err := s.lockouts.RecordFailure()
	if err != nil {
		return nil, err
	}
	if state.Locked(time.Now().UTC()) {
		s.logger.Warn("lockout tripped", "failed_attempts", state.FailedAttempts, "lockout_until", state.LockoutUntil)
	}
	return s.result(state), nil
}

func (s *Service) result(state *model.LockoutState) *LoginResult {
	remaining := s.lockouts.Threshold() - state.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return &LoginResult{
		Locked:            state.Locked(time.Now().UTC()),
		LockoutUntil:      state.LockoutUntil,
		FailedAttempts:    state.FailedAttempts,
		AttemptsRemaining: remaining,
	}
}

// ValidateSession reports whether the token names a live session. Unknown
// and expired tokens are indistinguishable to the caller.
func (s *Service) ValidateSession(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.sessions.Validate(token)
}

// Logout revokes the token; a no-op if it was never valid.
func (s *Service) Logout(token string) error {
	return s.sessions.Revoke(token)
}

// LockoutStatus returns the current lockout state for the UI countdown.
// Reading it folds an expired deadline back to the open state.
func (s *Service) LockoutStatus() (*model.LockoutState, error) {
	return s.lockouts.Status()
}

// PurgeExpiredSessions deletes sessions past their expiry; used by the
// periodic cleanup sweep.
func (s *Service) PurgeExpiredSessions() (int64, error) {
	return s.sessions.DeleteExpired()
}
