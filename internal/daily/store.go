package daily

import (
	"context"
	"database/sql"
)

// Result is one player's finished daily game.
type Result struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	WordIndex int    `json:"wordIndex"`
	Won       bool   `json:"won"`
	Misses    int    `json:"misses"`
	ElapsedMs int    `json:"elapsedMs"`
}

// LBRow is a leaderboard entry. Player is the username, or "guest".
type LBRow struct {
	Player    string `json:"player"`
	Misses    int    `json:"misses"`
	ElapsedMs int    `json:"elapsedMs"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// AlreadyPlayed reports whether userID has a result for date.
func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?`,
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult stores r; a second result for the same user and date is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, word_index, won, misses, elapsed_ms)
         VALUES(?,?,?,?,?,?)`, r.UserID, r.Date, r.WordIndex, r.Won, r.Misses, r.ElapsedMs,
	)
	return err
}

// Leaderboard lists the date's winners: fewest misses, then fastest, then earliest.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(u.username, 'guest'), d.misses, d.elapsed_ms
         FROM daily_results d
         LEFT JOIN users u ON u.id = d.user_id
         WHERE d.date=? AND d.won=1
         ORDER BY d.misses ASC, d.elapsed_ms ASC, d.created_at ASC, d.rowid ASC
         LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.Player, &r.Misses, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
