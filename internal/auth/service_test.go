package auth

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ewagner/picnote/internal/database"
)

func setupService(t *testing.T, cfg Config) *Service {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, cfg, logger)
}

func TestSetupFlow(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	setup, err := svc.IsSetup()
	if err != nil {
		t.Fatalf("is setup: %v", err)
	}
	if setup {
		t.Fatal("expected setup mode on fresh database")
	}

	if _, err := svc.AttemptLogin([]int{1, 2, 3}); !errors.Is(err, ErrNotSetUp) {
		t.Errorf("login before setup error = %v, want ErrNotSetUp", err)
	}

	token, err := svc.SetCredential([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("set credential: %v", err)
	}
	if token == "" {
		t.Fatal("expected a session token from setup")
	}

	setup, err = svc.IsSetup()
	if err != nil {
		t.Fatalf("is setup: %v", err)
	}
	if !setup {
		t.Error("expected setup complete")
	}

	valid, err := svc.ValidateSession(token)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	if !valid {
		t.Error("setup should log the caller in")
	}
}

func TestSetCredentialInvalidFormat(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	for _, seq := range [][]int{{1, 2}, {1, 2, 3, 4, 5, 6}, {1, 1, 2}, {0, 2, 3}} {
		if _, err := svc.SetCredential(seq); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("SetCredential(%v) error = %v, want ErrInvalidFormat", seq, err)
		}
	}

	setup, err := svc.IsSetup()
	if err != nil {
		t.Fatalf("is setup: %v", err)
	}
	if setup {
		t.Error("rejected sequences must not create a credential")
	}
}

func TestLoginRoundTrip(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	if _, err := svc.SetCredential([]int{2, 7, 5, 11}); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	result, err := svc.AttemptLogin([]int{2, 7, 5, 11})
	if err != nil {
		t.Fatalf("attempt login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected token for correct sequence")
	}

	valid, err := svc.ValidateSession(result.Token)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	if !valid {
		t.Error("issued token should validate")
	}
}

func TestLoginOrderSensitive(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	result, err := svc.AttemptLogin([]int{3, 2, 1})
	if err != nil {
		t.Fatalf("attempt login: %v", err)
	}
	if result.Token != "" {
		t.Fatal("reordered sequence must not authenticate")
	}
	if result.FailedAttempts != 1 {
		t.Errorf("failed_attempts = %d, want 1", result.FailedAttempts)
	}
	if result.AttemptsRemaining != 2 {
		t.Errorf("attempts_remaining = %d, want 2", result.AttemptsRemaining)
	}
}

func TestMalformedSequenceDoesNotConsumeAttempt(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	// Repeated elements: a format violation, not a guess.
	if _, err := svc.AttemptLogin([]int{9, 9, 9}); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("error = %v, want ErrInvalidFormat", err)
	}

	st, err := svc.LockoutStatus()
	if err != nil {
		t.Fatalf("lockout status: %v", err)
	}
	if st.FailedAttempts != 0 {
		t.Errorf("failed_attempts = %d, want 0", st.FailedAttempts)
	}
}

func TestLockoutRefusesCorrectSequence(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	wrong := [][]int{{9, 8, 7}, {8, 7, 9}, {7, 9, 8}}
	var last *LoginResult
	for _, seq := range wrong {
		var err error
		last, err = svc.AttemptLogin(seq)
		if err != nil {
			t.Fatalf("attempt login %v: %v", seq, err)
		}
		if last.Token != "" {
			t.Fatalf("wrong sequence %v authenticated", seq)
		}
	}
	if !last.Locked {
		t.Fatal("expected lock after three failures")
	}
	if last.LockoutUntil == nil {
		t.Fatal("expected a lockout deadline")
	}
	if last.AttemptsRemaining != 0 {
		t.Errorf("attempts_remaining = %d, want 0", last.AttemptsRemaining)
	}

	// The correct sequence is refused while locked, and the counter stays
	// frozen at the trip value.
	result, err := svc.AttemptLogin([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("attempt login while locked: %v", err)
	}
	if result.Token != "" {
		t.Fatal("locked state must refuse the correct sequence")
	}
	if !result.Locked {
		t.Error("expected locked result")
	}
	if result.FailedAttempts != 3 {
		t.Errorf("failed_attempts = %d, want 3", result.FailedAttempts)
	}
}

func TestLockoutExpiresWithoutExplicitReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockoutDuration = 20 * time.Millisecond
	svc := setupService(t, cfg)

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}
	for _, seq := range [][]int{{9, 8, 7}, {8, 7, 9}, {7, 9, 8}} {
		if _, err := svc.AttemptLogin(seq); err != nil {
			t.Fatalf("attempt login: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)

	st, err := svc.LockoutStatus()
	if err != nil {
		t.Fatalf("lockout status: %v", err)
	}
	if st.Locked(time.Now().UTC()) {
		t.Fatal("lock should have expired")
	}
	if st.FailedAttempts != 0 {
		t.Errorf("failed_attempts = %d, want 0 after expiry", st.FailedAttempts)
	}

	result, err := svc.AttemptLogin([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("attempt login after expiry: %v", err)
	}
	if result.Token == "" {
		t.Fatal("correct sequence should authenticate after the lock expires")
	}
	valid, err := svc.ValidateSession(result.Token)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	if !valid {
		t.Error("issued token should validate")
	}
}

func TestSuccessResetsCounterBeforeTrip(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}
	svc.AttemptLogin([]int{9, 8, 7})
	svc.AttemptLogin([]int{8, 7, 9})

	result, err := svc.AttemptLogin([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("attempt login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected successful login")
	}

	st, err := svc.LockoutStatus()
	if err != nil {
		t.Fatalf("lockout status: %v", err)
	}
	if st.FailedAttempts != 0 || st.LockoutUntil != nil {
		t.Errorf("state = (%d, %v), want (0, nil)", st.FailedAttempts, st.LockoutUntil)
	}
}

func TestSessionExpiryInvalidatesToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionDuration = 20 * time.Millisecond
	svc := setupService(t, cfg)

	token, err := svc.SetCredential([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("set credential: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 2; i++ {
		valid, err := svc.ValidateSession(token)
		if err != nil {
			t.Fatalf("validate session: %v", err)
		}
		if valid {
			t.Fatal("expired token must never validate")
		}
	}
}

func TestLogout(t *testing.T) {
	svc := setupService(t, DefaultConfig())

	token, err := svc.SetCredential([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("set credential: %v", err)
	}

	if err := svc.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	valid, err := svc.ValidateSession(token)
	if err != nil {
		t.Fatalf("validate session: %v", err)
	}
	if valid {
		t.Error("revoked token should be invalid")
	}

	// Idempotent for unknown tokens.
	if err := svc.Logout(token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestConcurrentFailedLoginsCountExactly(t *testing.T) {
	const n = 16
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1000 // keep the trip logic out of the arithmetic
	svc := setupService(t, cfg)

	if _, err := svc.SetCredential([]int{1, 2, 3}); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AttemptLogin([]int{9, 8, 7}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("attempt login: %v", err)
	}

	st, err := svc.LockoutStatus()
	if err != nil {
		t.Fatalf("lockout status: %v", err)
	}
	if st.FailedAttempts != n {
		t.Errorf("failed_attempts = %d, want %d (lost update)", st.FailedAttempts, n)
	}
}
