// internal/game/types.go
//
// Core type definitions for the hangman game engine.
// Defines:
//   - Status: coarse state of a round (playing/won/lost), using the wire values.
//   - State: read-only snapshot returned after every operation.
//   - Outcome: State plus what a single guess did.

package game

import "errors"

const (
	// MaxAttempts is the number of wrong guesses a player may make in a round.
	MaxAttempts = 6

	// Placeholder renders an unrevealed letter in the progress string.
	Placeholder = "_"
)

// Status is the state of a round. Values are the strings the client expects.
type Status string

const (
	StatusPlaying Status = "jugando"
	StatusWon     Status = "ganaste"
	StatusLost    Status = "perdiste"
)

// Terminal reports whether no further guesses are accepted.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

var (
	// ErrInvalidInput is returned for empty, multi-character or non-letter guesses.
	ErrInvalidInput = errors.New("invalid input: guess must be a single letter")

	// ErrGameOver is returned when guessing after the round was won or lost.
	ErrGameOver = errors.New("game over: reset to play again")
)

// State is a snapshot of a game taken under its lock.
type State struct {
	RoundID      string   // Identifier of the current play-through.
	Status       Status   // jugando | ganaste | perdiste
	Progress     string   // e.g. "G _ _ _"
	AttemptsLeft int      // MaxAttempts minus wrong guesses, never negative.
	UsedLetters  []string // Guessed letters in guess order.
	Misses       int      // Wrong guesses so far.
	Guesses      int      // Accepted guesses this round; grows by one per change.
	WordLength   int      // Number of characters in the secret word.
	CorrectWord  string   // Only set once the round is lost.
}

// Outcome describes the effect of one guess.
type Outcome struct {
	State
	Letter   string // Normalized (upper-case) letter.
	Repeated bool   // Letter had already been guessed; nothing changed.
	Hit      bool   // Letter occurs in the secret word.
	Finished bool   // This guess moved the round into a terminal status.
}
