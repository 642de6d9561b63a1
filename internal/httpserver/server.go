// internal/httpserver/server.go
//
// HTTP server wiring for the hangman backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, request log).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Game endpoints (optional auth): POST /guess, POST /reset, GET /state, POST /session, GET /ws.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine, /games/{id}.
//   - Background sweep of sessions idle for longer than SESSION_TTL.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     game routes still run for guests.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hangman/internal/config"
	"github.com/robalobadob/hangman/internal/history"
	"github.com/robalobadob/hangman/internal/realtime"
	"github.com/robalobadob/hangman/internal/session"
	"github.com/robalobadob/hangman/internal/store"
	"github.com/robalobadob/hangman/internal/words"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Store  store.Store
	Words  *words.List
	Source words.Source // secret words for regular rounds; defaults to Words
	DB     *sql.DB
	Now    func() time.Time // defaults to time.Now
}

// Server bundles router, session manager and DB handle.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	db       *sql.DB
	words    *words.List
	sessions *session.Manager
	history  *history.Store
	hub      *realtime.Hub
	now      func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, d Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		db:      d.DB,
		words:   d.Words,
		history: history.NewStore(d.DB),
		now:     d.Now,
		stop:    make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.hub = realtime.NewHub(func(origin string) bool { return origin == cfg.ClientOrigin })

	src := d.Source
	if src == nil {
		src = d.Words
	}
	s.sessions = session.NewManager(d.Store, src,
		roundLog{hist: s.history},
		livePush{hub: s.hub},
	)

	// --- middleware ---
	s.r.Use(chimw.RequestID)        // add X-Request-ID
	s.r.Use(chimw.RealIP)           // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)          // one log line per request
	s.r.Use(chimw.Recoverer)        // recover from panics
	s.r.Use(chimw.Timeout(timeout)) // bound handler time
	s.r.Use(jsonContentType)        // default JSON responses
	s.r.Use(s.cors)                 // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "hangman-go",
			"endpoints": []string{"/health", "POST /guess", "POST /reset", "GET /state", "POST /session", "/ws", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		res := map[string]any{"words": s.words.Len(), "sessions": s.sessions.Len()}
		if q := r.URL.Query().Get("w"); q != "" {
			res["known"] = s.words.Contains(q)
		}
		writeJSON(w, http.StatusOK, res)
	})

	// Game endpoints: OPTIONAL AUTH (guests can play)
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountGame(r)
		s.mountDaily(r)
	})

	// Auth + profile/stats
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	if cfg.SessionTTL > 0 {
		go s.sweepSessions(cfg.SessionTTL)
	}

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Close stops background work. It is safe to call more than once.
func (s *Server) Close() { s.closeOnce.Do(func() { close(s.stop) }) }

// sweepSessions evicts idle sessions every quarter TTL until Close.
func (s *Server) sweepSessions(ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			s.evictIdle(now, ttl)
		}
	}
}

// evictIdle drops sessions unused for ttl as of now. Touch times are wall-clock.
func (s *Server) evictIdle(now time.Time, ttl time.Duration) int {
	n, err := s.sessions.EvictIdle(context.Background(), now.Add(-ttl))
	if err != nil {
		log.Warn().Err(err).Msg("evict idle sessions")
	}
	return n
}

// Handler exposes the router as an http.Handler (server setup and tests).
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ------------------------------- helpers -----------------------------------

type errorRes struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorRes{Error: code, Message: msg})
}
