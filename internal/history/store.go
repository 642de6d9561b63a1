// Package history persists played rounds and per-user totals.
//
// A row is written when a round starts, its counters follow every accepted
// guess, and it is closed when the round is won or lost. Updates only move a
// row forward: an outcome older than the stored one, or arriving after the
// round was closed, is ignored. When the
// round belongs to a registered user, closing it also updates the user's
// games played, wins and streak in the same transaction.
// The secret word is never stored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robalobadob/hangman/internal/game"
)

// Round is one persisted play-through.
type Round struct {
	ID         string `json:"id"`
	SessionKey string `json:"-"`
	UserID     string `json:"-"`
	WordLength int    `json:"wordLength"`
	Status     string `json:"status"`
	Guesses    int    `json:"guesses"`
	Misses     int    `json:"misses"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Store reads and writes the games table.
type Store struct{ db *sql.DB }

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// StartRound inserts a new round row. userID may be empty for guests.
func (s *Store) StartRound(ctx context.Context, sessionKey, userID string, st game.State) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO games (id, session_key, user_id, word_length, status, started_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		st.RoundID, sessionKey, nullable(userID), st.WordLength, string(st.Status), now(),
	)
	return err
}

// RecordGuess stores out's counters and closes the round when out finished it.
// Stale outcomes are a no-op; an unknown round wraps sql.ErrNoRows.
func (s *Store) RecordGuess(ctx context.Context, out game.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        UPDATE games SET guesses = ?, misses = ?, status = ?
        WHERE id = ? AND guesses < ? AND status = ?`,
		out.Guesses, out.Misses, string(out.Status),
		out.RoundID, out.Guesses, string(game.StatusPlaying))
	if err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM games WHERE id = ?`, out.RoundID).Scan(&one)
		if err != nil {
			return fmt.Errorf("round %s: %w", out.RoundID, err)
		}
		return nil
	}

	if out.Finished {
		if _, err := tx.ExecContext(ctx,
			`UPDATE games SET finished_at = ? WHERE id = ?`, now(), out.RoundID); err != nil {
			return fmt.Errorf("finish round: %w", err)
		}
		var userID sql.NullString
		if err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM games WHERE id = ?`, out.RoundID).Scan(&userID); err != nil {
			return err
		}
		if userID.Valid && userID.String != "" {
			if err := bumpStats(ctx, tx, userID.String, out.Status == game.StatusWon); err != nil {
				return fmt.Errorf("bump stats: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ClaimSession attaches every guest round played under sessionKey to userID.
func (s *Store) ClaimSession(ctx context.Context, sessionKey, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET user_id = ? WHERE session_key = ? AND user_id IS NULL`, userID, sessionKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByUser returns the user's most recent rounds, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_key, COALESCE(user_id, ''), word_length, status, guesses, misses,
               started_at, COALESCE(finished_at, '')
        FROM games WHERE user_id = ?
        ORDER BY started_at DESC, rowid DESC
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Round{}
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.ID, &r.SessionKey, &r.UserID, &r.WordLength, &r.Status,
			&r.Guesses, &r.Misses, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get loads a single round.
func (s *Store) Get(ctx context.Context, id string) (*Round, error) {
	var r Round
	err := s.db.QueryRowContext(ctx, `
        SELECT id, session_key, COALESCE(user_id, ''), word_length, status, guesses, misses,
               started_at, COALESCE(finished_at, '')
        FROM games WHERE id = ?`, id).
		Scan(&r.ID, &r.SessionKey, &r.UserID, &r.WordLength, &r.Status,
			&r.Guesses, &r.Misses, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("load round %s: %w", id, err)
	}
	return &r, nil
}

// bumpStats increments games played; updates wins and streak based on result (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id = ?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET games_played = ?, wins = ?, streak = ? WHERE id = ?`, gp, wins, streak, userID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func now() string { return time.Now().UTC().Format(timeLayout) }
