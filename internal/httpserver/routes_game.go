// internal/httpserver/routes_game.go
//
// HTTP routes for regular hangman play:
//   - POST /guess   → apply one letter to the caller's session
//   - POST /reset   → start a new round
//   - GET  /state   → current round, no mutation
//   - POST /session → mint a fresh session id (cookie + body)
//   - GET  /ws      → websocket push of the session's state after every change
//
// Which session a request plays is decided by sessionKey (identity.go).

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hangman/internal/game"
	"github.com/robalobadob/hangman/internal/session"
)

// mountGame registers the game routes on r.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/guess", s.handleGuess)
	r.Post("/reset", s.handleReset)
	r.Get("/state", s.handleState)
	r.Post("/session", s.handleNewSession)
	r.Get("/ws", s.handleWS)
}

// gameRes is the game view sent to clients.
type gameRes struct {
	Status       game.Status `json:"status"` // "jugando" | "ganaste" | "perdiste"
	Progress     string      `json:"progress"`
	AttemptsLeft int         `json:"attempts_left"`
	UsedLetters  []string    `json:"used_letters"`
	CorrectWord  string      `json:"correct_word,omitempty"` // only when lost
	RoundID      string      `json:"round_id"`
}

func toRes(st game.State) gameRes {
	used := st.UsedLetters
	if used == nil {
		used = []string{}
	}
	return gameRes{
		Status:       st.Status,
		Progress:     st.Progress,
		AttemptsLeft: st.AttemptsLeft,
		UsedLetters:  used,
		CorrectWord:  st.CorrectWord,
		RoundID:      st.RoundID,
	}
}

// gameOverRes is returned with 409 when guessing in a finished round.
type gameOverRes struct {
	errorRes
	State gameRes `json:"state"`
}

type guessReq struct {
	Letter string `json:"letter"`
}

// handleGuess applies the letter to the caller's session.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "body must be {\"letter\": \"a\"}")
		return
	}
	key, ok := s.sessionKeyOrError(w, r)
	if !ok {
		return
	}

	out, err := s.sessions.Guess(r.Context(), key, req.Letter)
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
		s.internalError(w, err, "guess")
		return
	}

	log.Debug().Str("session", key).Str("letter", out.Letter).Bool("hit", out.Hit).
		Bool("repeated", out.Repeated).Str("status", string(out.Status)).Msg("guess")
	writeJSON(w, http.StatusOK, toRes(out.State))
}

// handleReset starts a new round for the caller's session. Any body is ignored.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	key, ok := s.sessionKeyOrError(w, r)
	if !ok {
		return
	}
	st, err := s.sessions.Reset(r.Context(), key)
	if err != nil {
		s.internalError(w, err, "reset")
		return
	}
	writeJSON(w, http.StatusOK, toRes(st))
}

// handleState returns the caller's current round.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sessionKeyOrError(w, r)
	if !ok {
		return
	}
	st, err := s.sessions.State(r.Context(), key)
	if err != nil {
		s.internalError(w, err, "state")
		return
	}
	writeJSON(w, http.StatusOK, toRes(st))
}

type newSessionRes struct {
	SessionID string  `json:"sessionId"`
	State     gameRes `json:"state"`
}

// handleNewSession mints a session id, sets it as cookie and starts its first round.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	st, err := s.sessions.State(r.Context(), sidPrefix+id)
	if err != nil {
		s.internalError(w, err, "new session")
		return
	}
	s.setSessionCookie(w, id)
	writeJSON(w, http.StatusCreated, newSessionRes{SessionID: id, State: toRes(st)})
}

// handleWS subscribes the caller to live updates of their session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sessionKeyOrError(w, r)
	if !ok {
		return
	}
	st, err := s.sessions.State(r.Context(), key)
	if err != nil {
		s.internalError(w, err, "ws state")
		return
	}
	s.hub.ServeWS(w, r, key, toRes(st))
}

// sessionKeyOrError resolves the session key or writes a 400.
func (s *Server) sessionKeyOrError(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := s.sessionKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return "", false
	}
	return key, true
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, session.ErrInvalidKey) {
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
		return
	}
	log.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal", "")
}
