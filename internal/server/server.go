package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ewagner/picnote/internal/auth"
	"github.com/ewagner/picnote/internal/handler"
	"github.com/ewagner/picnote/internal/middleware"
	"github.com/ewagner/picnote/internal/store"
	ws "github.com/ewagner/picnote/internal/websocket"
)

// Rate limit for the credential-guessing endpoints, per client IP. The
// lockout state machine is the real defense; this just blunts scripted
// hammering.
const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authSvc     *auth.Service
	authH       *handler.AuthHandler
	noteH       *handler.NoteHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg auth.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	authSvc := auth.NewService(db, cfg, logger.With("component", "auth"))
	noteStore := store.NewNoteStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		authSvc:     authSvc,
		authH:       handler.NewAuthHandler(authSvc, logger.With("component", "auth_handler")),
		noteH:       handler.NewNoteHandler(noteStore, hub, logger.With("component", "note")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// AuthService returns the coordinator for cleanup tasks.
func (s *Server) AuthService() *auth.Service {
	return s.authSvc
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no session required). Setup self-gates: once a
	// credential exists the handler demands a session before replacing it.
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/auth/setup", s.authH.SetupStatus)
	outerMux.HandleFunc("POST /api/auth/setup", s.rateLimitedHandler(s.authH.SetCredential))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/auth/lockout", s.authH.LockoutStatus)
	outerMux.HandleFunc("GET /api/auth/session", s.authH.Session)

	// Protected routes — wrapped with RequireSession middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	sessionMiddleware := middleware.RequireSession(s.authSvc)
	outerMux.Handle("/", sessionMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	mux.HandleFunc("POST /api/notes", s.noteH.Create)
	mux.HandleFunc("GET /api/notes", s.noteH.List)
	mux.HandleFunc("GET /api/notes/{id}", s.noteH.Get)
	mux.HandleFunc("PUT /api/notes/{id}", s.noteH.Update)
	mux.HandleFunc("DELETE /api/notes/{id}", s.noteH.Delete)
	mux.HandleFunc("POST /api/notes/{id}/pin", s.noteH.TogglePinned)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginRateLimit, loginRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
