// internal/config/config.go
//
// Runtime configuration for the hangman server.
// Every setting comes from the environment (a .env file is loaded first by
// main) and falls back to a default that works for local development.
// Command-line flags may override a few of them afterwards.
//
// Environment variables:
//   PORT, LOG_LEVEL, LOG_FORMAT, DB_PATH, WORDS_FILE, CLIENT_ORIGIN,
//   JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME, SESSION_COOKIE, NODE_ENV,
//   DAILY_SALT, REQUEST_TIMEOUT, SESSION_TTL, OTEL_EXPORTER_OTLP_ENDPOINT

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server settings.
type Config struct {
	Port      string
	LogLevel  string // zerolog level name
	LogFormat string // "json" (default) or "console"
	DBPath    string // sqlite file; parent directory is created
	WordsFile string // empty selects the embedded list

	// ClientOrigin is the only origin allowed by CORS and the websocket upgrader.
	ClientOrigin string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string // auth token cookie
	SessionCookie  string // guest session id cookie
	Production     bool   // secure, SameSite=None cookies

	DailySalt      string
	RequestTimeout time.Duration

	// SessionTTL is how long an unused session is kept in memory; 0 keeps them forever.
	SessionTTL time.Duration

	// OTLPEndpoint enables tracing when set.
	OTLPEndpoint string
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "5175"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		DBPath:         getEnv("DB_PATH", "./data/hangman.db"),
		WordsFile:      os.Getenv("WORDS_FILE"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:3000"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: getenvInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "hangman_token"),
		SessionCookie:  getEnv("SESSION_COOKIE", "hangman_session"),
		Production:     os.Getenv("NODE_ENV") == "production",
		DailySalt:      getEnv("DAILY_SALT", "local_dev_salt"),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 10*time.Second),
		SessionTTL:     getenvDuration("SESSION_TTL", 24*time.Hour),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
