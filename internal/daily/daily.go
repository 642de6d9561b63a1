// Package daily picks the word of the day and stores daily results.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WordIndex maps the UTC day of t to a position in a list of n words.
// The position is HMAC-SHA256(salt, DateKey(t)) read as a big-endian uint64,
// modulo n, so every player sees the same word all day and the sequence
// cannot be guessed without the salt. n <= 0 yields 0.
func WordIndex(t time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(DateKey(t)))
	return int(binary.BigEndian.Uint64(mac.Sum(nil)[:8]) % uint64(n))
}
