// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's game (creates or reuses session)
//   - POST /daily/guess       → submit a letter for today's game
//   - GET  /daily/leaderboard → winners for today (or ?date=YYYY-MM-DD)
//
// Everyone gets the same word on a given UTC date (HMAC of date + salt).
// Each player finishes at most one daily game per date; the result is stored
// as soon as the round is won or lost.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hangman/internal/daily"
	"github.com/robalobadob/hangman/internal/game"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	sessions map[string]*dailySession // active sessions keyed by player|date
	mu       sync.Mutex               // guards sessions
}

// dailySession holds in-memory state for one player's daily game.
type dailySession struct {
	GameID    string
	PlayerID  string
	Date      string
	WordIndex int
	Game      *game.Game
	Start     time.Time

	recordOnce sync.Once
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     s.cfg.DailySalt,
		sessions: make(map[string]*dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/guess", dd.handleGuess)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// today returns today's date key, deterministic word index, and word.
func (d *dailyServer) today() (date string, idx int, word string) {
	now := d.srv.now()
	date = daily.DateKey(now)
	idx = daily.WordIndex(now, d.salt, d.srv.words.Len())
	return date, idx, d.srv.words.At(idx)
}

// playerID returns the authenticated user id, else the client's session id,
// minting (and setting) one if the client has none.
func (d *dailyServer) playerID(w http.ResponseWriter, r *http.Request) (string, error) {
	if me := currentUser(r); me != nil {
		return me.ID, nil
	}
	id, err := d.srv.requestedSessionID(r)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
		d.srv.setSessionCookie(w, id)
	}
	return sidPrefix + id, nil
}

// -----------------------------------------------------------------------------
// /daily/new

type dailyNewRes struct {
	GameID string   `json:"gameId,omitempty"`
	Date   string   `json:"date"`
	Played bool     `json:"played"`
	State  *gameRes `json:"state,omitempty"`
}

// handleNew creates or reuses a daily session for the current date.
//   - If the player already has a stored result for today → Played=true.
//   - Otherwise create/reuse an in-memory session and return its state.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	pid, err := d.playerID(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	date, idx, word := d.today()

	key := pid + "|" + date
	d.mu.Lock()
	d.evictBefore(date)
	sess, ok := d.sessions[key]
	d.mu.Unlock()
	if ok {
		st := toRes(sess.Game.State())
		writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.GameID, Date: date, State: &st})
		return
	}

	if played, err := d.store.AlreadyPlayed(r.Context(), pid, date); err != nil {
		log.Error().Err(err).Msg("daily already played")
		writeError(w, http.StatusInternalServerError, "db_error", "")
		return
	} else if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	d.mu.Lock()
	if existing, ok := d.sessions[key]; ok {
		sess = existing
	} else {
		gameID := uuid.NewString()
		sess = &dailySession{
			GameID:    gameID,
			PlayerID:  pid,
			Date:      date,
			WordIndex: idx,
			Game:      game.New(gameID, word),
			Start:     d.srv.now(),
		}
		d.sessions[key] = sess
	}
	d.mu.Unlock()

	st := toRes(sess.Game.State())
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.GameID, Date: date, State: &st})
}

// evictBefore drops sessions from earlier dates. Caller holds d.mu.
func (d *dailyServer) evictBefore(date string) {
	for k, s := range d.sessions {
		if s.Date < date {
			delete(d.sessions, k)
		}
	}
}

// -----------------------------------------------------------------------------
// /daily/guess

type dailyGuessReq struct {
	GameID string `json:"gameId"`
	Letter string `json:"letter"`
}

// handleGuess applies a letter to today's session and stores the result once finished.
func (d *dailyServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	pid, err := d.playerID(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	var p dailyGuessReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_json", "body must be {\"gameId\": \"...\", \"letter\": \"a\"}")
		return
	}

	date, _, _ := d.today()
	d.mu.Lock()
	sess, ok := d.sessions[pid+"|"+date]
	d.mu.Unlock()
	if !ok || sess.GameID != p.GameID {
		writeError(w, http.StatusConflict, "no_session", "start today's game with POST /daily/new")
		return
	}

	out, err := sess.Game.Guess(p.Letter)
	switch {
	case errors.Is(err, game.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	case errors.Is(err, game.ErrGameOver):
		writeJSON(w, http.StatusConflict, gameOverRes{
			errorRes: errorRes{Error: "game_over", Message: err.Error()},
			State:    toRes(out.State),
		})
		return
	case err != nil:
		d.srv.internalError(w, err, "daily guess")
		return
	}

	if out.Finished {
		sess.recordOnce.Do(func() {
			res := daily.Result{
				UserID:    pid,
				Date:      sess.Date,
				WordIndex: sess.WordIndex,
				Won:       out.Status == game.StatusWon,
				Misses:    out.Misses,
				ElapsedMs: int(d.srv.now().Sub(sess.Start).Milliseconds()),
			}
			if err := d.store.InsertResult(r.Context(), res); err != nil {
				log.Warn().Err(err).Str("player", pid).Msg("insert daily result")
			}
		})
	}
	writeJSON(w, http.StatusOK, toRes(out.State))
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date, _, _ = d.today()
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date", "date must be YYYY-MM-DD")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		log.Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error", "")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
