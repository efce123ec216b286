package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ewagner/picnote/internal/auth"
	"github.com/ewagner/picnote/internal/database"
	"github.com/ewagner/picnote/internal/logging"
	"github.com/ewagner/picnote/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("PICNOTE_LOG_LEVEL"))

	port := os.Getenv("PICNOTE_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("PICNOTE_DB_PATH")
	if dbPath == "" {
		dbPath = "picnote.db"
	}

	cfg := auth.DefaultConfig()
	if hours := envInt("PICNOTE_SESSION_HOURS"); hours > 0 {
		cfg.SessionDuration = time.Duration(hours) * time.Hour
	}
	if minutes := envInt("PICNOTE_LOCKOUT_MINUTES"); minutes > 0 {
		cfg.LockoutDuration = time.Duration(minutes) * time.Minute
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	// Low-frequency sweep: expired sessions and stale rate-limit entries.
	// Correctness does not depend on it; validation already treats expired
	// sessions as dead. This just keeps storage from growing.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := srv.AuthService().PurgeExpiredSessions(); err != nil {
				logger.Error("purge sessions", "error", err)
			} else if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("picnote listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
