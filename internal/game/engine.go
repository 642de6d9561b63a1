// internal/game/engine.go
//
// Core game engine for a single hangman session.
// Responsibilities:
//   - Hold the secret word, guessed letters and remaining attempts.
//   - Validate and apply single-letter guesses.
//   - Track state transitions: playing → won/lost (absorbing until Reset).
//   - Render the masked progress string.
//
// Notes:
//   - Every exported method takes the game's own mutex, so a session shared
//     between requests never exposes a half-applied guess.
//   - GuessThen/ResetThen run their callback before unlocking, so observers
//     see changes in exactly the order they were applied.
//   - Word selection lives in the words package; the engine only receives words.

package game

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Game is the mutable state of one player's session.
type Game struct {
	mu        sync.Mutex
	id        string
	roundID   string
	secret    []rune
	guessed   []rune
	remaining int
	status    Status
}

// New constructs a game for the given session id with word as its secret.
func New(id, word string) *Game {
	g := &Game{id: id}
	g.reset(word)
	return g
}

// ID returns the session id the game was created for.
func (g *Game) ID() string { return g.id }

// Guess applies a single letter to the game.
//
// Validation rules:
//   - Surrounding whitespace is ignored; what remains must be exactly one letter.
//   - The round must not be finished.
//
// A letter that was already guessed is accepted and changes nothing.
func (g *Game) Guess(letter string) (Outcome, error) { return g.GuessThen(letter, nil) }

// GuessThen is Guess with a callback for guesses that changed the game.
// then runs while the game is still locked and must not call back into g.
func (g *Game) GuessThen(letter string, then func(Outcome)) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := normalizeLetter(letter)
	if !ok {
		return Outcome{State: g.snapshot()}, ErrInvalidInput
	}
	if g.status.Terminal() {
		return Outcome{State: g.snapshot()}, ErrGameOver
	}

	out := Outcome{Letter: string(r), Hit: g.inSecret(r)}
	if g.wasGuessed(r) {
		out.Repeated = true
		out.State = g.snapshot()
		return out, nil
	}

	g.guessed = append(g.guessed, r)
	if !out.Hit && g.remaining > 0 {
		g.remaining--
	}

	switch {
	case g.solved():
		g.status = StatusWon
	case g.remaining == 0:
		g.status = StatusLost
	}
	out.Finished = g.status.Terminal()
	out.State = g.snapshot()
	if then != nil {
		then(out)
	}
	return out, nil
}

// Reset starts a new round with word as the secret. Prior state is discarded.
func (g *Game) Reset(word string) State { return g.ResetThen(word, nil) }

// ResetThen is Reset with a callback run before the game is unlocked.
func (g *Game) ResetThen(word string, then func(State)) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset(word)
	st := g.snapshot()
	if then != nil {
		then(st)
	}
	return st
}

// State returns a snapshot of the current round.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Game) reset(word string) {
	g.roundID = uuid.NewString()
	g.secret = []rune(strings.ToUpper(strings.TrimSpace(word)))
	g.guessed = g.guessed[:0]
	g.remaining = MaxAttempts
	g.status = StatusPlaying
	if g.solved() {
		// Only possible for a word without letters; nothing is left to guess.
		g.status = StatusWon
	}
}

// snapshot must be called with g.mu held.
func (g *Game) snapshot() State {
	used := make([]string, len(g.guessed))
	for i, r := range g.guessed {
		used[i] = string(r)
	}
	st := State{
		RoundID:      g.roundID,
		Status:       g.status,
		Progress:     g.progress(),
		AttemptsLeft: g.remaining,
		UsedLetters:  used,
		Misses:       MaxAttempts - g.remaining,
		Guesses:      len(g.guessed),
		WordLength:   len(g.secret),
	}
	if g.status == StatusLost {
		st.CorrectWord = string(g.secret)
	}
	return st
}

// progress renders the secret with unrevealed letters masked, space separated.
func (g *Game) progress() string {
	var b strings.Builder
	for i, r := range g.secret {
		if i > 0 {
			b.WriteByte(' ')
		}
		if !unicode.IsLetter(r) || g.wasGuessed(r) {
			b.WriteRune(r)
		} else {
			b.WriteString(Placeholder)
		}
	}
	return b.String()
}

// solved reports whether every letter of the secret has been guessed.
func (g *Game) solved() bool {
	for _, r := range g.secret {
		if unicode.IsLetter(r) && !g.wasGuessed(r) {
			return false
		}
	}
	return true
}

func (g *Game) wasGuessed(r rune) bool {
	for _, x := range g.guessed {
		if x == r {
			return true
		}
	}
	return false
}

func (g *Game) inSecret(r rune) bool {
	for _, x := range g.secret {
		if x == r {
			return true
		}
	}
	return false
}

// normalizeLetter trims s and returns its single letter upper-cased.
func normalizeLetter(s string) (rune, bool) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return 0, false
	}
	return unicode.ToUpper(r), true
}
