// internal/words/words.go
//
// Provides the word sources the game engine draws secret words from.
//
// Responsibilities:
//   - Load the word list from an external file or the embedded default.
//   - Normalize entries (upper case, letters only, 3–16 characters).
//   - Pick words uniformly at random (crypto/rand) or in a fixed sequence.
//
// Word file format:
//   - One word per line, surrounding whitespace ignored.
//   - Empty lines and lines starting with '#' are skipped.
//   - Invalid entries are dropped silently; duplicates are kept once.
//
// Environment variables (read by config):
//   WORDS_FILE=/path/to/words.txt

package words

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/robalobadob/hangman/assets"
)

const (
	minLen = 3
	maxLen = 16
)

// ErrEmptyList is returned when a source ends up with no usable words.
var ErrEmptyList = errors.New("words: list is empty")

// Source supplies secret words for new rounds.
type Source interface {
	Pick() string
}

// List is an immutable, normalized word list.
type List struct {
	words []string
	set   map[string]struct{}
}

// Load reads the list from path, or the embedded default when path is empty.
func Load(path string) (*List, error) {
	if path == "" {
		b, err := assets.Words()
		if err != nil {
			return nil, fmt.Errorf("read embedded words: %w", err)
		}
		return Parse(bytes.NewReader(b))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Parse reads one word per line from r.
func Parse(r io.Reader) (*List, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewList(out...)
}

// NewList builds a list from words, dropping invalid entries.
func NewList(words ...string) (*List, error) {
	l := &List{set: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w, ok := Normalize(w)
		if !ok {
			continue
		}
		if _, dup := l.set[w]; dup {
			continue
		}
		l.set[w] = struct{}{}
		l.words = append(l.words, w)
	}
	if len(l.words) == 0 {
		return nil, ErrEmptyList
	}
	return l, nil
}

// Normalize upper-cases w and reports whether it is a usable secret word.
func Normalize(w string) (string, bool) {
	w = strings.ToUpper(strings.TrimSpace(w))
	n := utf8.RuneCountInString(w)
	if n < minLen || n > maxLen {
		return "", false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return "", false
		}
	}
	return w, true
}

// Pick returns a cryptographically random word from the list.
func (l *List) Pick() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(l.words))))
	if err != nil {
		return l.words[0]
	}
	return l.words[n.Int64()]
}

// At returns the i-th word; i is taken modulo the list length.
func (l *List) At(i int) string {
	n := len(l.words)
	return l.words[((i%n)+n)%n]
}

// Len reports the number of words.
func (l *List) Len() int { return len(l.words) }

// Contains reports whether w (any case) is in the list.
func (l *List) Contains(w string) bool {
	_, ok := l.set[strings.ToUpper(strings.TrimSpace(w))]
	return ok
}

// Sequence returns a Source that hands out words in order, wrapping around.
// Useful for tests and fixed-word play.
func Sequence(words ...string) Source {
	if len(words) == 0 {
		panic("words: Sequence needs at least one word")
	}
	return &sequence{words: words}
}

type sequence struct {
	mu    sync.Mutex
	words []string
	next  int
}

func (s *sequence) Pick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.words[s.next%len(s.words)]
	s.next++
	return w
}
