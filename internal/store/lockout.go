package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ewagner/picnote/internal/model"
)

// LockoutStore owns the single global lockout row. Every failed login from
// any caller funnels into the same record, so the mutating paths use an
// optimistic read-compute-write loop guarded by the row's version column:
// a write only lands if the row is unchanged since it was read, and a
// conflict restarts the loop. Concurrent failures therefore never lose an
// increment and never trip the lock twice from divergent counters.
type LockoutStore struct {
	db              *sql.DB
	threshold       int
	lockoutDuration time.Duration
}

func NewLockoutStore(db *sql.DB, threshold int, lockoutDuration time.Duration) *LockoutStore {
	return &LockoutStore{db: db, threshold: threshold, lockoutDuration: lockoutDuration}
}

// Threshold returns the failure count at which the lockout trips.
func (s *LockoutStore) Threshold() int {
	return s.threshold
}

func (s *LockoutStore) get() (*model.LockoutState, int64, error) {
	row := s.db.QueryRow(
		`SELECT failed_attempts, lockout_until, last_attempt_at, version, updated_at FROM lockout_state WHERE id = 1`,
	)
	var st model.LockoutState
	var until, last sql.NullTime
	var version int64
	if err := row.Scan(&st.FailedAttempts, &until, &last, &version, &st.UpdatedAt); err != nil {
		return nil, 0, fmt.Errorf("get lockout state: %w", err)
	}
	if until.Valid {
		st.LockoutUntil = &until.Time
	}
	if last.Valid {
		st.LastAttemptAt = &last.Time
	}
	return &st, version, nil
}

// Status returns the current state. An elapsed deadline is folded back to
// the open state first, so the row never reports a lock that has expired.
func (s *LockoutStore) Status() (*model.LockoutState, error) {
	for {
		st, version, err := s.get()
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if st.LockoutUntil == nil || st.LockoutUntil.After(now) {
			return st, nil
		}
		ok, err := s.casReset(now, version)
		if err != nil {
			return nil, err
		}
		if ok {
			st.FailedAttempts = 0
			st.LockoutUntil = nil
			st.UpdatedAt = now
			return st, nil
		}
		// Lost the race to another writer; re-read.
	}
}

// RecordFailure applies one failed attempt atomically: a validly locked
// state is returned unchanged, an expired lock counts as a fresh first
// failure, and the increment that reaches the threshold sets the deadline.
func (s *LockoutStore) RecordFailure() (*model.LockoutState, error) {
	for {
		st, version, err := s.get()
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if st.Locked(now) {
			// A locked account does not accumulate further failures.
			return st, nil
		}

		attempts := st.FailedAttempts + 1
		if st.LockoutUntil != nil {
			// Deadline elapsed but nobody observed it yet: the stale
			// counter resets and this failure becomes the first.
			attempts = 1
		}
		var until sql.NullTime
		if attempts >= s.threshold {
			until = sql.NullTime{Time: now.Add(s.lockoutDuration), Valid: true}
		}

		result, err := s.db.Exec(
			`UPDATE lockout_state SET failed_attempts = ?, lockout_until = ?, last_attempt_at = ?, version = version + 1, updated_at = ?
			 WHERE id = 1 AND version = ?`,
			attempts, until, now, now, version,
		)
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 1 {
			st.FailedAttempts = attempts
			st.LockoutUntil = nil
			if until.Valid {
				st.LockoutUntil = &until.Time
			}
			st.LastAttemptAt = &now
			st.UpdatedAt = now
			return st, nil
		}
	}
}

// Reset clears the counter and deadline. Idempotent; called on successful
// authentication and on credential re-setup.
func (s *LockoutStore) Reset() error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE lockout_state SET failed_attempts = 0, lockout_until = NULL, version = version + 1, updated_at = ? WHERE id = 1`,
		now,
	)
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	return nil
}

func (s *LockoutStore) casReset(now time.Time, version int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE lockout_state SET failed_attempts = 0, lockout_until = NULL, version = version + 1, updated_at = ?
		 WHERE id = 1 AND version = ?`,
		now, version,
	)
	if err != nil {
		return false, fmt.Errorf("reset expired lockout: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
