package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Session keys are namespaced so a user id can never collide with a client-chosen id.
const (
	userPrefix = "user:"
	sidPrefix  = "sid:"

	// defaultSessionKey is the single shared game played by clients that send
	// neither credentials nor a session id.
	defaultSessionKey = "default"

	sessionHeader = "X-Session-ID"
	sessionQuery  = "session"
	maxSessionID  = 64
)

var errBadSessionID = errors.New("session id must be 1-64 characters of letters, digits, '-' or '_'")

// sessionKey picks the game a request plays:
//  1. the authenticated user's session;
//  2. a client-supplied session id (header, query or cookie);
//  3. the shared default session.
func (s *Server) sessionKey(r *http.Request) (string, error) {
	if me := currentUser(r); me != nil {
		return userPrefix + me.ID, nil
	}
	id, err := s.requestedSessionID(r)
	if err != nil {
		return "", err
	}
	if id != "" {
		return sidPrefix + id, nil
	}
	return defaultSessionKey, nil
}

// requestedSessionID returns the session id sent by the client, if any.
func (s *Server) requestedSessionID(r *http.Request) (string, error) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		id = r.URL.Query().Get(sessionQuery)
	}
	if id == "" {
		if c, err := r.Cookie(s.cfg.SessionCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		return "", nil
	}
	if !validSessionID(id) {
		return "", errBadSessionID
	}
	return id, nil
}

func validSessionID(id string) bool {
	if len(id) == 0 || len(id) > maxSessionID {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// userFromKey returns the user id encoded in a session key, or "".
func userFromKey(key string) string {
	id, ok := strings.CutPrefix(key, userPrefix)
	if !ok {
		return ""
	}
	return id
}

// setSessionCookie stores the session id in a long-lived cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
}

// sameSite is None in production (cross-site client over TLS), Lax otherwise.
func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
