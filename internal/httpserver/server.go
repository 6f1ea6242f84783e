// internal/httpserver/server.go
//
// HTTP server wiring for the quiz backend.
// Responsibilities:
//   - Router + middleware (request IDs, access log, JSON, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health", "/ladder".
//   - Game endpoints (optional auth): mounted by mountGame (routes_game.go).
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: mounted by mountAuthRoutes (routes_auth.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     guests get a stable anonymous cookie instead.
//   - Live games sit in the session store; finished games are written to the
//     results ledger exactly once.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/internal/auth"
	"github.com/robalobadob/kbcquiz/internal/config"
	"github.com/robalobadob/kbcquiz/internal/leaderboard"
	"github.com/robalobadob/kbcquiz/internal/quiz"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
)

// Server bundles router, session store, ledger and account service.
type Server struct {
	r       *chi.Mux
	cfg     config.Config
	bank    *quiz.Bank
	store   store.Store
	results *results.Store
	auth    *auth.Service
	board   *leaderboard.Board
	now     func() time.Time

	seeds atomic.Int64 // advances RANDOM_SEED per game when fixed
}

// New constructs a Server, installs middleware, and registers routes.
// board may be nil, in which case the leaderboard reads SQLite only.
func New(cfg config.Config, bank *quiz.Bank, st store.Store, db *sql.DB, board *leaderboard.Board) *Server {
	res := results.NewStore(db)
	if board == nil {
		board = leaderboard.New(nil, res)
	}
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		bank:    bank,
		store:   st,
		results: res,
		auth:    auth.NewService(db, cfg.JWTSecret, cfg.TokenTTL()),
		board:   board,
		now:     time.Now,
	}
	s.seeds.Store(cfg.RandomSeed)

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))     // request-scoped logger
	s.r.Use(accessLog)                       // one line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"kbc-quiz","endpoints":["/health","/ladder","POST /game/new","POST /game/answer","POST /game/advance","POST /game/lifeline","/daily/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/ladder", s.handleLadder)

	// Game endpoints: OPTIONAL AUTH (guests can play)
	s.mountGame(s.r.With(s.withOptionalAuth()))

	// Daily Challenge: OPTIONAL AUTH (one run per player per day)
	s.mountDaily(s.r.With(s.withOptionalAuth()))

	// Auth + profile/stats
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// newRand returns the 50-50 source for a classic game.
// With RANDOM_SEED set, games get consecutive seeds so runs are reproducible.
func (s *Server) newRand() *rand.Rand {
	if s.cfg.RandomSeed != 0 {
		return rand.New(rand.NewSource(s.seeds.Add(1) - 1))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// handleLadder returns the prize ladder and safe checkpoints.
func (s *Server) handleLadder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ladder":     s.bank.Ladder,
		"safeLevels": s.bank.SafeLevels,
		"questions":  len(s.bank.Questions),
	})
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one zerolog line per request with the chi request id.
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("reqId", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
})

// cors enables credentialed CORS for the configured CLIENT_ORIGIN.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- small util --------------------------------

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// errNotOwner hides other players' games behind a 404.
var errNotOwner = errors.New("not owner")

// writeEngineError maps engine and store errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errNotOwner):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, quiz.ErrGameAlreadyTerminal):
		writeError(w, http.StatusConflict, "game_over")
	case errors.Is(err, quiz.ErrInvalidLifelineState):
		writeError(w, http.StatusConflict, "lifeline_unavailable")
	case errors.Is(err, quiz.ErrInvalidOptionIndex):
		writeError(w, http.StatusBadRequest, "invalid_option")
	case errors.Is(err, quiz.ErrAwaitingAdvance):
		writeError(w, http.StatusConflict, "awaiting_advance")
	case errors.Is(err, quiz.ErrNothingToAdvance):
		writeError(w, http.StatusConflict, "nothing_to_advance")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("game operation")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
