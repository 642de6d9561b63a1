// internal/store/memory.go
//
// In-memory implementation of the session Store.
// Holds one *game.Game per session key until the session goes idle.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - The map lock only guards lookups; each game serializes its own mutations.
//   - Every Get or Save marks the session as used; Evict drops the idle ones.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/hangman/internal/game"
)

// ErrNotFound is returned by Get for unknown session keys.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence interface for game sessions.
type Store interface {
	// Get retrieves the game for a session key and marks it as used.
	Get(ctx context.Context, key string) (*game.Game, error)

	// Save stores g under key, replacing any previous game.
	Save(ctx context.Context, key string, g *game.Game) error

	// Evict removes every session last used before idleSince and returns their keys.
	Evict(ctx context.Context, idleSince time.Time) ([]string, error)

	// Len reports the number of stored sessions.
	Len() int
}

type entry struct {
	game    *game.Game
	touched time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex      // guards games map and touch times
	games map[string]*entry // keyed by session key
	now   func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]*entry), now: time.Now}
}

func (m *memory) Get(ctx context.Context, key string) (*game.Game, error) {
	// Write lock: a hit refreshes the touch time.
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.touched = m.now()
	return e.game, nil
}

func (m *memory) Save(ctx context.Context, key string, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[key] = &entry{game: g, touched: m.now()}
	return nil
}

func (m *memory) Evict(ctx context.Context, idleSince time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k, e := range m.games {
		if e.touched.Before(idleSince) {
			delete(m.games, k)
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
