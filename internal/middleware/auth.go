package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ewagner/picnote/internal/auth"
)

// SessionCookieName is the cookie browser clients carry the token in.
const SessionCookieName = "picnote_session"

// SessionToken extracts the bearer token from the request: Authorization
// header first, session cookie as fallback. Empty if neither is present.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireSession rejects requests whose token does not name a live session.
// The token is revalidated server-side on every call; the client never
// decides its own authentication state.
func RequireSession(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			valid, err := svc.ValidateSession(SessionToken(r))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "try again")
				return
			}
			if !valid {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
