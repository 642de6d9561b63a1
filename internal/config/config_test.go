package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "DB_PATH", "WORDS_FILE", "JWT_EXPIRES_DAYS",
		"NODE_ENV", "REQUEST_TIMEOUT", "SESSION_COOKIE", "SESSION_TTL"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" || c.LogLevel != "info" || c.DBPath != "./data/hangman.db" {
		t.Errorf("defaults = %+v", c)
	}
	if c.WordsFile != "" || c.Production {
		t.Errorf("unexpected words/production: %+v", c)
	}
	if c.JWTExpiresDays != 14 || c.RequestTimeout != 10*time.Second {
		t.Errorf("numeric defaults = %d %v", c.JWTExpiresDays, c.RequestTimeout)
	}
	if c.SessionCookie != "hangman_session" || c.SessionTTL != 24*time.Hour {
		t.Errorf("session defaults = %q %v", c.SessionCookie, c.SessionTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_EXPIRES_DAYS", "3")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("WORDS_FILE", "/tmp/w.txt")
	t.Setenv("SESSION_TTL", "90m")

	c := Load()
	if c.Port != "9000" || c.JWTExpiresDays != 3 || c.RequestTimeout != 2*time.Second {
		t.Errorf("env values = %+v", c)
	}
	if !c.Production || c.WordsFile != "/tmp/w.txt" || c.SessionTTL != 90*time.Minute {
		t.Errorf("env values = %+v", c)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("JWT_EXPIRES_DAYS", "many")
	t.Setenv("REQUEST_TIMEOUT", "-5s")
	c := Load()
	if c.JWTExpiresDays != 14 || c.RequestTimeout != 10*time.Second {
		t.Errorf("garbage not ignored: %d %v", c.JWTExpiresDays, c.RequestTimeout)
	}
}
