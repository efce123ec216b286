package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ewagner/picnote/internal/auth"
	"github.com/ewagner/picnote/internal/middleware"
)

type AuthHandler struct {
	svc    *auth.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type sequenceRequest struct {
	Sequence []int `json:"sequence"`
}

// SetupStatus reports whether a credential exists, driving the client's
// choice between the set-a-credential and enter-credential flows.
func (h *AuthHandler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.IsSetup()
	if err != nil {
		h.logger.Error("setup status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"setup": setup})
}

// SetCredential stores a new picture password and logs the caller in. Open
// during first run; once a credential exists, replacing it requires a live
// session so an unauthenticated client cannot overwrite the secret.
func (h *AuthHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.IsSetup()
	if err != nil {
		h.logger.Error("setup lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}
	if setup {
		valid, err := h.svc.ValidateSession(middleware.SessionToken(r))
		if err != nil {
			h.logger.Error("setup session check", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
			return
		}
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
	}

	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	token, err := h.svc.SetCredential(req.Sequence)
	if errors.Is(err, auth.ErrInvalidFormat) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("set credential", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

// Login evaluates a candidate sequence against the stored credential under
// the lockout rules.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	result, err := h.svc.AttemptLogin(req.Sequence)
	if errors.Is(err, auth.ErrInvalidFormat) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if errors.Is(err, auth.ErrNotSetUp) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no credential set up"})
		return
	}
	if err != nil {
		h.logger.Error("attempt login", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}

	switch {
	case result.Token != "":
		h.setSessionCookie(w, result.Token)
		writeJSON(w, http.StatusOK, result)
	case result.Locked:
		writeJSON(w, http.StatusForbidden, result)
	default:
		writeJSON(w, http.StatusUnauthorized, result)
	}
}

// Session reports whether the caller's token names a live session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	valid, err := h.svc.ValidateSession(middleware.SessionToken(r))
	if err != nil {
		h.logger.Error("validate session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": valid})
}

// Logout revokes the caller's session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(middleware.SessionToken(r)); err != nil {
		h.logger.Error("logout", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// LockoutStatus exposes the lockout state for the client's countdown.
func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.LockoutStatus()
	if err != nil {
		h.logger.Error("lockout status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try again"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"is_locked":       state.Locked(time.Now().UTC()),
		"lockout_until":   state.LockoutUntil,
		"failed_attempts": state.FailedAttempts,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
