// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start (or resume) today's daily game
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Answers, lifelines and advance go through the regular /game endpoints.
// Each player can play once per UTC day (enforced by DB + in-memory index,
// which only ever holds today's games).
// The 50-50 source is seeded from date + salt, so every player sees the same
// eliminations on a given day.

package httpserver

import (
	"math/rand"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/kbcquiz/internal/daily"
	"github.com/robalobadob/kbcquiz/internal/quiz"
	"github.com/robalobadob/kbcquiz/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv *Server

	mu     sync.Mutex        // guards day and active
	day    string            // date the index belongs to
	active map[string]string // player|date → game ID
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{srv: s, active: make(map[string]string)}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID string      `json:"gameId"`
	Date   string      `json:"date"`
	Played bool        `json:"played"`
	State  *quiz.State `json:"state,omitempty"`
}

// handleNew creates or resumes the caller's daily game.
//   - A DB row for today → Played=true, no game.
//   - An unfinished in-memory game → resumed.
//   - Otherwise a new date-seeded game.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	s := d.srv
	owner := s.owner(w, r)
	player := owner.UserID
	if player == "" {
		player = owner.AnonID
	}
	now := s.now()
	date := daily.DateKey(now)

	played, err := s.results.AlreadyPlayedDaily(r.Context(), player, date)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("daily lookup")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	key := player + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollover(date)

	if id, ok := d.active[key]; ok {
		var st quiz.State
		err := s.store.Update(r.Context(), id, func(sess *store.Session) error {
			st = sess.Game.State()
			return nil
		})
		if err == nil && st.Status == quiz.StatusNone {
			writeJSON(w, http.StatusOK, dailyNewRes{GameID: id, Date: date, State: &st})
			return
		}
		if err == nil {
			// finished but the ledger write has not landed (or failed)
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
			return
		}
		// evicted from the store: start over
		delete(d.active, key)
	}

	rng := rand.New(rand.NewSource(daily.Seed(now, s.cfg.DailySalt)))
	sess := s.newSession(quiz.New(s.bank, rng), owner, store.ModeDaily, date)
	if err := s.startSession(r.Context(), sess, owner); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("save daily game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	d.active[key] = sess.Game.ID
	st := sess.Game.State()
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.Game.ID, Date: date, State: &st})
}

// rollover drops the index when the UTC day changes. Caller holds d.mu.
func (d *dailyServer) rollover(date string) {
	if d.day != date {
		d.day = date
		d.active = make(map[string]string)
	}
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string `json:"date"`
	Top  any    `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	}
	rows, err := d.srv.board.Top(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
