// Package session maps player session keys to games.
//
// The Manager is the only writer of the store: it creates a game the first
// time a key is seen, forwards guesses and resets to that key's game, and
// notifies listeners (history persistence, live updates) about what happened.
// Creation is serialized so concurrent first requests for one key share a game;
// after that each game serializes its own mutations, and listeners hear about
// them in that same order. Sessions left idle are evicted by EvictIdle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robalobadob/hangman/internal/game"
	"github.com/robalobadob/hangman/internal/store"
	"github.com/robalobadob/hangman/internal/telemetry"
	"github.com/robalobadob/hangman/internal/words"
)

// MaxKeyLen bounds the length of a session key.
const MaxKeyLen = 80

// ErrInvalidKey is returned for empty or oversized session keys.
var ErrInvalidKey = errors.New("invalid session key")

// Listener observes session activity. Calls happen synchronously while the
// session's game is locked: they arrive in the order the changes were applied,
// must not block for long and must not call back into the Manager for that key.
type Listener interface {
	// RoundStarted is called for every new round, before it is visible to guesses.
	RoundStarted(ctx context.Context, key string, st game.State)

	// Guessed is called after each guess that changed the game.
	Guessed(ctx context.Context, key string, out game.Outcome)
}

// Manager owns session lifecycle.
type Manager struct {
	store     store.Store
	source    words.Source
	tracer    trace.Tracer
	createMu  sync.Mutex
	listeners []Listener
}

// NewManager builds a Manager drawing secret words from src.
func NewManager(st store.Store, src words.Source, ls ...Listener) *Manager {
	return &Manager{
		store:     st,
		source:    src,
		tracer:    telemetry.Tracer("session"),
		listeners: ls,
	}
}

// Open returns the game for key, creating it if needed.
// created reports whether a new round was started by this call.
func (m *Manager) Open(ctx context.Context, key string) (g *game.Game, created bool, err error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}
	if g, err := m.store.Get(ctx, key); err == nil {
		return g, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()
	if g, err := m.store.Get(ctx, key); err == nil {
		return g, false, nil
	}

	g = game.New(key, m.source.Pick())
	st := g.State()
	for _, l := range m.listeners {
		l.RoundStarted(ctx, key, st)
	}
	if err := m.store.Save(ctx, key, g); err != nil {
		return nil, false, fmt.Errorf("save session: %w", err)
	}
	log.Debug().Str("session", key).Str("round", st.RoundID).Msg("session created")
	return g, true, nil
}

// State returns the current state of key's game.
func (m *Manager) State(ctx context.Context, key string) (game.State, error) {
	g, _, err := m.Open(ctx, key)
	if err != nil {
		return game.State{}, err
	}
	return g.State(), nil
}

// Guess applies letter to key's game. On game.ErrInvalidInput and
// game.ErrGameOver the returned outcome still carries the unchanged state.
func (m *Manager) Guess(ctx context.Context, key, letter string) (game.Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "session.guess",
		trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	g, _, err := m.Open(ctx, key)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return game.Outcome{}, err
	}

	out, err := g.GuessThen(letter, func(out game.Outcome) {
		for _, l := range m.listeners {
			l.Guessed(ctx, key, out)
		}
	})
	span.SetAttributes(
		attribute.String("game.round", out.RoundID),
		attribute.String("game.status", string(out.Status)),
		attribute.Int("game.attempts_left", out.AttemptsLeft),
		attribute.Bool("game.repeated", out.Repeated),
	)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

// Reset starts a new round for key. A session seen for the first time is
// simply created.
func (m *Manager) Reset(ctx context.Context, key string) (game.State, error) {
	ctx, span := m.tracer.Start(ctx, "session.reset",
		trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	g, created, err := m.Open(ctx, key)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return game.State{}, err
	}
	if created {
		return g.State(), nil
	}

	st := g.ResetThen(m.source.Pick(), func(st game.State) {
		for _, l := range m.listeners {
			l.RoundStarted(ctx, key, st)
		}
	})
	span.SetAttributes(attribute.String("game.round", st.RoundID))
	return st, nil
}

// EvictIdle forgets every session not used since idleSince. A later request
// for an evicted key starts a new round.
func (m *Manager) EvictIdle(ctx context.Context, idleSince time.Time) (int, error) {
	keys, err := m.store.Evict(ctx, idleSince)
	if err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		log.Info().Int("sessions", len(keys)).Time("idle_since", idleSince).Msg("evicted idle sessions")
	}
	return len(keys), nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int { return m.store.Len() }

func validKey(key string) error {
	if key == "" || len(key) > MaxKeyLen {
		return ErrInvalidKey
	}
	return nil
}
