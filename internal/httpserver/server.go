// internal/httpserver/server.go
//
// HTTP server wiring for the Bull's Eye backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Session endpoints (optional auth): mounted under /session.
//   - Leaderboard + personal results: /leaderboard, /scores/mine.
//   - Auth endpoints: /auth/*.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes still run for guests.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/bullseye/internal/game"
	"github.com/robalobadob/bullseye/internal/scores"
	"github.com/robalobadob/bullseye/internal/store"
)

// Config carries the server's tunables; zero values get defaults in New.
type Config struct {
	Fallback       game.FallbackPolicy
	ClientOrigin   string
	Production     bool
	JWTSecret      string
	TokenTTL       time.Duration
	CookieName     string
	HandlerTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Fallback == "" {
		c.Fallback = game.FallbackOnEmpty
	}
	if c.ClientOrigin == "" {
		c.ClientOrigin = "http://localhost:5173"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev_secret_change_me"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 14 * 24 * time.Hour
	}
	if c.CookieName == "" {
		c.CookieName = "bullseye_token"
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 20 * time.Second
	}
}

// Server bundles router, session registry, results store and target source.
type Server struct {
	r      *chi.Mux
	store  store.Store
	db     *sql.DB
	scores *scores.Store
	source game.TargetSource
	cfg    Config
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, db *sql.DB, src game.TargetSource, cfg Config) *Server {
	cfg.defaults()
	s := &Server{
		r:      chi.NewRouter(),
		store:  st,
		db:     db,
		scores: scores.NewStore(db),
		source: src,
		cfg:    cfg,
	}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(cfg.HandlerTimeout))
	s.r.Use(jsonContentType)
	s.r.Use(cors(cfg.ClientOrigin))

	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"bullseye-go","endpoints":["/health","POST /session/new","POST /session/{id}/round","POST /session/{id}/guess","/leaderboard","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "db_unavailable")
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth)
		s.mountSessions(r)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
	s.r.With(s.requireAuth).Get("/scores/mine", s.handleMyScores)
	s.mountAuth(s.r)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError writes {"error":code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErrorMsg writes {"error":code,"message":msg}.
func writeErrorMsg(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
