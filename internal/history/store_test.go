package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robalobadob/hangman/assets"
	"github.com/robalobadob/hangman/internal/db"
	"github.com/robalobadob/hangman/internal/game"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "h.db"), assets.Migrations())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func addUser(t *testing.T, d *sql.DB, id string) {
	t.Helper()
	_, err := d.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, 'x', '2026-01-01T00:00:00Z')`, id, "user_"+id)
	if err != nil {
		t.Fatal(err)
	}
}

func userStats(t *testing.T, d *sql.DB, id string) (gp, wins, streak int) {
	t.Helper()
	if err := d.QueryRow(`SELECT games_played, wins, streak FROM users WHERE id=?`, id).Scan(&gp, &wins, &streak); err != nil {
		t.Fatal(err)
	}
	return
}

// play starts a round for word and applies letters, recording each accepted guess.
func play(t *testing.T, s *Store, key, userID, word string, letters ...string) game.State {
	t.Helper()
	ctx := context.Background()
	g := game.New(key, word)
	if err := s.StartRound(ctx, key, userID, g.State()); err != nil {
		t.Fatal(err)
	}
	for _, l := range letters {
		out, err := g.Guess(l)
		if err != nil {
			t.Fatalf("Guess(%q): %v", l, err)
		}
		if out.Repeated {
			continue
		}
		if err := s.RecordGuess(ctx, out); err != nil {
			t.Fatalf("RecordGuess: %v", err)
		}
	}
	return g.State()
}

func TestRoundLifecycleForUser(t *testing.T) {
	d := openTestDB(t)
	s := NewStore(d)
	addUser(t, d, "u1")

	st := play(t, s, "user:u1", "u1", "SOL", "X", "S", "O", "L")

	r, err := s.Get(context.Background(), st.RoundID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != string(game.StatusWon) || r.Guesses != 4 || r.Misses != 1 || r.FinishedAt == "" {
		t.Errorf("round = %+v", r)
	}
	if r.WordLength != 3 {
		t.Errorf("word length = %d", r.WordLength)
	}

	gp, wins, streak := userStats(t, d, "u1")
	if gp != 1 || wins != 1 || streak != 1 {
		t.Errorf("stats = %d/%d/%d", gp, wins, streak)
	}

	play(t, s, "user:u1", "u1", "SOL", "A", "B", "C", "D", "E", "F")
	gp, wins, streak = userStats(t, d, "u1")
	if gp != 2 || wins != 1 || streak != 0 {
		t.Errorf("stats after loss = %d/%d/%d", gp, wins, streak)
	}

	rounds, err := s.ListByUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 2 {
		t.Fatalf("rounds = %d", len(rounds))
	}
	if rounds[0].Status != string(game.StatusLost) {
		t.Errorf("newest round status = %q", rounds[0].Status)
	}
}

func TestGuestRoundAndClaim(t *testing.T) {
	d := openTestDB(t)
	s := NewStore(d)
	ctx := context.Background()

	play(t, s, "sid:abc", "", "GATO", "G", "A", "T", "O")
	if rounds, _ := s.ListByUser(ctx, "u2", 0); len(rounds) != 0 {
		t.Fatalf("guest round listed for user: %v", rounds)
	}

	addUser(t, d, "u2")
	n, err := s.ClaimSession(ctx, "sid:abc", "u2")
	if err != nil || n != 1 {
		t.Fatalf("ClaimSession = %d, %v", n, err)
	}
	rounds, _ := s.ListByUser(ctx, "u2", 0)
	if len(rounds) != 1 || rounds[0].Status != string(game.StatusWon) {
		t.Errorf("claimed rounds = %+v", rounds)
	}
}

func TestRecordGuessUnknownRound(t *testing.T) {
	s := NewStore(openTestDB(t))
	out := game.Outcome{State: game.State{RoundID: "nope", Status: game.StatusPlaying}}
	if err := s.RecordGuess(context.Background(), out); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRecordGuessIgnoresStaleOutcome(t *testing.T) {
	d := openTestDB(t)
	s := NewStore(d)
	ctx := context.Background()
	addUser(t, d, "u1")

	g := game.New("user:u1", "SOL")
	if err := s.StartRound(ctx, "user:u1", "u1", g.State()); err != nil {
		t.Fatal(err)
	}
	var outs []game.Outcome
	for _, l := range []string{"A", "B", "C", "D", "E", "F"} {
		out, err := g.Guess(l)
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, out)
	}
	for _, out := range outs[:4] {
		if err := s.RecordGuess(ctx, out); err != nil {
			t.Fatal(err)
		}
	}
	// The finishing guess lands before the one preceding it.
	if err := s.RecordGuess(ctx, outs[5]); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordGuess(ctx, outs[4]); err != nil {
		t.Fatal(err)
	}
	// Replaying the finishing guess must not count the round twice.
	if err := s.RecordGuess(ctx, outs[5]); err != nil {
		t.Fatal(err)
	}

	r, err := s.Get(ctx, outs[0].RoundID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != string(game.StatusLost) || r.Misses != 6 || r.Guesses != 6 || r.FinishedAt == "" {
		t.Errorf("round = %+v", r)
	}
	if gp, wins, streak := userStats(t, d, "u1"); gp != 1 || wins != 0 || streak != 0 {
		t.Errorf("stats = %d/%d/%d", gp, wins, streak)
	}
}
