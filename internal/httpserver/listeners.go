package httpserver

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hangman/internal/game"
	"github.com/robalobadob/hangman/internal/history"
	"github.com/robalobadob/hangman/internal/realtime"
)

// roundLog persists rounds and guesses. Failures are logged, never surfaced:
// the in-memory game stays authoritative.
type roundLog struct{ hist *history.Store }

func (l roundLog) RoundStarted(ctx context.Context, key string, st game.State) {
	if err := l.hist.StartRound(ctx, key, userFromKey(key), st); err != nil {
		log.Warn().Err(err).Str("session", key).Str("round", st.RoundID).Msg("insert round")
	}
}

func (l roundLog) Guessed(ctx context.Context, key string, out game.Outcome) {
	if err := l.hist.RecordGuess(ctx, out); err != nil {
		log.Warn().Err(err).Str("session", key).Str("round", out.RoundID).Msg("record guess")
	}
}

// livePush forwards every change to websocket subscribers of the session.
type livePush struct{ hub *realtime.Hub }

func (p livePush) RoundStarted(_ context.Context, key string, st game.State) {
	p.hub.Publish(key, toRes(st))
}

func (p livePush) Guessed(_ context.Context, key string, out game.Outcome) {
	p.hub.Publish(key, toRes(out.State))
}
