package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/hangman/internal/game"
	"github.com/robalobadob/hangman/internal/store"
	"github.com/robalobadob/hangman/internal/words"
)

// recorder is a Listener that keeps every event it sees.
type recorder struct {
	mu      sync.Mutex
	rounds  []game.State
	guesses []game.Outcome
}

func (r *recorder) RoundStarted(_ context.Context, _ string, st game.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, st)
}

func (r *recorder) Guessed(_ context.Context, _ string, out game.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guesses = append(r.guesses, out)
}

func newTestManager(ws ...string) (*Manager, *recorder) {
	rec := &recorder{}
	return NewManager(store.NewMemoryStore(), words.Sequence(ws...), rec), rec
}

func TestOpenCreatesOnce(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestManager("GATO", "SOL")

	g1, created, err := m.Open(ctx, "p1")
	if err != nil || !created {
		t.Fatalf("first Open: created=%v err=%v", created, err)
	}
	g2, created, err := m.Open(ctx, "p1")
	if err != nil || created || g1 != g2 {
		t.Fatalf("second Open: created=%v same=%v err=%v", created, g1 == g2, err)
	}
	if len(rec.rounds) != 1 {
		t.Errorf("round events = %d, want 1", len(rec.rounds))
	}
}

func TestOpenConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestManager("GATO", "SOL", "LUNA")

	var wg sync.WaitGroup
	games := make([]*game.Game, 16)
	for i := range games {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, _, err := m.Open(ctx, "shared")
			if err != nil {
				t.Error(err)
				return
			}
			games[i] = g
		}(i)
	}
	wg.Wait()

	for _, g := range games[1:] {
		if g != games[0] {
			t.Fatal("concurrent Open produced different games")
		}
	}
	if len(rec.rounds) != 1 {
		t.Errorf("round events = %d, want 1", len(rec.rounds))
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager("GATO")
	for _, key := range []string{"", strings.Repeat("k", MaxKeyLen+1)} {
		if _, err := m.Guess(ctx, key, "a"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Guess(%q) err = %v", key, err)
		}
		if _, err := m.Reset(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Reset(%q) err = %v", key, err)
		}
	}
}

func TestGuessFlowAndEvents(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestManager("GATO")

	for _, l := range []string{"G", "A", "A", "T", "O"} {
		if _, err := m.Guess(ctx, "p1", l); err != nil {
			t.Fatalf("Guess(%q): %v", l, err)
		}
	}
	out, err := m.Guess(ctx, "p1", "Z")
	if !errors.Is(err, game.ErrGameOver) {
		t.Fatalf("err = %v, want ErrGameOver", err)
	}
	if out.Status != game.StatusWon || out.Progress != "G A T O" {
		t.Errorf("game over outcome = %+v", out.State)
	}

	// The repeated "A" and the rejected "Z" are not reported.
	if len(rec.guesses) != 4 {
		t.Fatalf("guess events = %d, want 4", len(rec.guesses))
	}
	if !rec.guesses[3].Finished {
		t.Error("last guess event should be marked finished")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager("SOL")

	if _, err := m.Guess(ctx, "a", "X"); err != nil {
		t.Fatal(err)
	}
	stA, _ := m.State(ctx, "a")
	stB, _ := m.State(ctx, "b")
	if stA.AttemptsLeft != game.MaxAttempts-1 {
		t.Errorf("a attempts = %d", stA.AttemptsLeft)
	}
	if stB.AttemptsLeft != game.MaxAttempts || len(stB.UsedLetters) != 0 {
		t.Errorf("b leaked state: %+v", stB)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestResetPicksNextWord(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestManager("SOL", "GATO")

	// First reset on an unknown key just creates the session.
	st, err := m.Reset(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if st.WordLength != 3 {
		t.Errorf("word length = %d, want 3", st.WordLength)
	}

	for _, l := range []string{"X", "Q", "Z", "W", "K", "J"} {
		_, _ = m.Guess(ctx, "p1", l)
	}
	lost, _ := m.State(ctx, "p1")
	if lost.Status != game.StatusLost || lost.CorrectWord != "SOL" {
		t.Fatalf("lost state = %+v", lost)
	}

	st, err = m.Reset(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Progress != "_ _ _ _" || st.AttemptsLeft != game.MaxAttempts ||
		st.Status != game.StatusPlaying || len(st.UsedLetters) != 0 {
		t.Errorf("after reset = %+v", st)
	}
	if len(rec.rounds) != 2 {
		t.Errorf("round events = %d, want 2", len(rec.rounds))
	}
}

func TestEvictIdleForgetsSessions(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestManager("SOL")
	before, _ := m.State(ctx, "p1")

	n, err := m.EvictIdle(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("EvictIdle = %d, %v", n, err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
	after, _ := m.State(ctx, "p1")
	if after.RoundID == before.RoundID || len(rec.rounds) != 2 {
		t.Errorf("expected a new round after eviction: %s -> %s, %d events",
			before.RoundID, after.RoundID, len(rec.rounds))
	}

	if n, _ := m.EvictIdle(ctx, time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("fresh session evicted: %d", n)
	}
}

// gatedListener holds the callback for one letter until released.
type gatedListener struct {
	recorder
	letter  string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedListener) Guessed(ctx context.Context, key string, out game.Outcome) {
	if out.Letter == g.letter {
		close(g.entered)
		<-g.release
	}
	g.recorder.Guessed(ctx, key, out)
}

func TestListenersSeeGuessesInApplyOrder(t *testing.T) {
	ctx := context.Background()
	gl := &gatedListener{letter: "X", entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store.NewMemoryStore(), words.Sequence("SOL"), gl)

	for _, l := range []string{"A", "B", "C", "D"} {
		if _, err := m.Guess(ctx, "p1", l); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = m.Guess(ctx, "p1", "X") // fifth miss, its listener stalls
	}()
	<-gl.entered
	go func() {
		defer wg.Done()
		_, _ = m.Guess(ctx, "p1", "Y") // sixth miss ends the round
	}()
	time.Sleep(20 * time.Millisecond)
	close(gl.release)
	wg.Wait()

	st, _ := m.State(ctx, "p1")
	if st.Status != game.StatusLost {
		t.Fatalf("status = %s", st.Status)
	}
	gl.mu.Lock()
	defer gl.mu.Unlock()
	if len(gl.guesses) != 6 {
		t.Fatalf("events = %d", len(gl.guesses))
	}
	last := gl.guesses[5]
	if last.Letter != "Y" || last.Status != game.StatusLost || last.Guesses != 6 {
		t.Errorf("last event = %s %s %d", last.Letter, last.Status, last.Guesses)
	}
}
