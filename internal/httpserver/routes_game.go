// internal/httpserver/routes_game.go
//
// JSON boundary over the quiz engine:
//   - POST /game/new       → start a classic game
//   - GET  /game/{id}      → current snapshot
//   - POST /game/answer    → submit an option (0..3)
//   - POST /game/advance   → move on after a correct/forgiven answer
//   - POST /game/lifeline  → fifty_fifty | assist | extra_life
//
// Every response carries the fresh State snapshot. The client owns the reveal
// delay: it shows the result, waits, then calls /game/advance.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/internal/quiz"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
)

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Get("/game/{id}", s.handleGetGame)
	r.Post("/game/answer", s.handleAnswer)
	r.Post("/game/advance", s.handleAdvance)
	r.Post("/game/lifeline", s.handleLifeline)
}

type newGameRes struct {
	GameID string     `json:"gameId"`
	State  quiz.State `json:"state"`
}

type answerReq struct {
	GameID string `json:"gameId"`
	Option *int   `json:"option"`
}

type answerRes struct {
	Result quiz.AnswerResult `json:"result"`
	State  quiz.State        `json:"state"`
}

type advanceReq struct {
	GameID string `json:"gameId"`
}

type lifelineReq struct {
	GameID   string        `json:"gameId"`
	Lifeline quiz.Lifeline `json:"lifeline"`
}

type lifelineRes struct {
	Result quiz.LifelineResult `json:"result"`
	State  quiz.State          `json:"state"`
}

// handleNewGame creates an in-memory classic game and a ledger row for its owner.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(w, r)
	sess := s.newSession(quiz.New(s.bank, s.newRand()), owner, store.ModeClassic, "")
	if err := s.startSession(r.Context(), sess, owner); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusOK, newGameRes{GameID: sess.Game.ID, State: sess.Game.State()})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var st quiz.State
	err := s.withGame(r, chi.URLParam(r, "id"), func(sess *store.Session) error {
		st = sess.Game.State()
		return nil
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleAnswer submits an option. A lost game is recorded before responding.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	var res answerRes
	var fin *finished
	err := s.withGame(r, req.GameID, func(sess *store.Session) error {
		out, err := sess.Game.SubmitAnswer(*req.Option)
		if err != nil {
			return err
		}
		res = answerRes{Result: out, State: sess.Game.State()}
		fin = takeFinished(sess)
		return nil
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), fin)
	writeJSON(w, http.StatusOK, res)
}

// handleAdvance moves to the next question; after the last one the game is won.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	var st quiz.State
	var fin *finished
	err := s.withGame(r, req.GameID, func(sess *store.Session) error {
		if err := sess.Game.Advance(); err != nil {
			return err
		}
		st = sess.Game.State()
		fin = takeFinished(sess)
		return nil
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	s.record(r.Context(), fin)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLifeline(w http.ResponseWriter, r *http.Request) {
	var req lifelineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	var res lifelineRes
	err := s.withGame(r, req.GameID, func(sess *store.Session) error {
		out, err := sess.Game.ActivateLifeline(req.Lifeline)
		if err != nil {
			return err
		}
		res = lifelineRes{Result: out, State: sess.Game.State()}
		return nil
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ------------------------------ sessions -----------------------------------

func (s *Server) newSession(g *quiz.Game, owner results.Owner, mode, date string) *store.Session {
	sess := &store.Session{Game: g, Mode: mode, Date: date, StartedAt: s.now()}
	if owner.UserID != "" {
		sess.OwnerID = owner.UserID
	} else {
		sess.OwnerID, sess.Anonymous = owner.AnonID, true
	}
	return sess
}

// startSession stores the live game and writes its ledger row (best effort).
func (s *Server) startSession(ctx context.Context, sess *store.Session, owner results.Owner) error {
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}
	if err := s.results.StartGame(ctx, sess.Game.ID, owner, sess.Mode, sess.StartedAt); err != nil {
		log.Warn().Err(err).Str("gameId", sess.Game.ID).Msg("insert game row")
	}
	return nil
}

// withGame runs fn on the caller's game under the store lock.
// Games owned by someone else are reported as not found.
func (s *Server) withGame(r *http.Request, id string, fn func(*store.Session) error) error {
	u := userFrom(r)
	anon := ""
	if c, err := r.Cookie(anonCookieName); err == nil {
		anon = c.Value
	}
	return s.store.Update(r.Context(), id, func(sess *store.Session) error {
		switch {
		case sess.Anonymous && anon != "" && sess.OwnerID == anon:
		case !sess.Anonymous && u != nil && sess.OwnerID == u.ID:
		default:
			return errNotOwner
		}
		return fn(sess)
	})
}

// finished is a copy of what the ledger needs once a game ends.
type finished struct {
	owner     results.Owner
	mode      string
	date      string
	startedAt time.Time
	finish    results.Finish
}

// takeFinished returns the ledger entry for a newly finished game, once.
// Must be called under the store lock.
func takeFinished(sess *store.Session) *finished {
	g := sess.Game
	if !g.Finished() || sess.Recorded {
		return nil
	}
	sess.Recorded = true
	owner := results.Owner{UserID: sess.OwnerID}
	if sess.Anonymous {
		owner = results.Owner{AnonID: sess.OwnerID}
	}
	return &finished{
		owner:     owner,
		mode:      sess.Mode,
		date:      sess.Date,
		startedAt: sess.StartedAt,
		finish: results.Finish{
			GameID:        g.ID,
			Status:        string(g.Status()),
			FinalAmount:   g.FinalAmount(),
			Cleared:       g.Cleared(),
			LifelinesUsed: g.LifelinesUsed(),
		},
	}
}

// record writes a finished game to the ledger, plus the daily tables for
// daily runs. Failures are logged; the player already has their result.
func (s *Server) record(ctx context.Context, f *finished) {
	if f == nil {
		return
	}
	now := s.now()
	f.finish.FinishedAt = now
	if err := s.results.FinishGame(ctx, f.owner, f.finish); err != nil {
		log.Warn().Err(err).Str("gameId", f.finish.GameID).Msg("finish game")
	}
	log.Info().
		Str("gameId", f.finish.GameID).
		Str("mode", f.mode).
		Str("status", f.finish.Status).
		Int("amount", f.finish.FinalAmount).
		Msg("game finished")

	if f.mode != store.ModeDaily {
		return
	}
	player, name := f.owner.UserID, ""
	if player == "" {
		player, name = f.owner.AnonID, results.GuestAlias(f.owner.AnonID)
	} else if u, err := s.auth.FindByID(ctx, player); err == nil {
		name = u.Username
	}
	dr := results.DailyResult{
		PlayerID:    player,
		Name:        name,
		Date:        f.date,
		FinalAmount: f.finish.FinalAmount,
		Cleared:     f.finish.Cleared,
		ElapsedMs:   int(now.Sub(f.startedAt).Milliseconds()),
	}
	if err := s.results.InsertDaily(ctx, dr); err != nil {
		log.Warn().Err(err).Str("date", f.date).Msg("insert daily result")
		return
	}
	s.board.Record(ctx, dr)
}
