package main

import (
	"net/http"
	"sync"

	"github.com/oidcware/relay/oidc"
	"github.com/oidcware/relay/oidc/strategy"
)

const sessionCookie = "rp-session"

// sessionStore hands out one in-memory session per browser, keyed by a
// cookie. It only exists to keep the example self-contained; a real
// deployment would back strategy.Session with its session middleware.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*strategy.MemorySession
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: map[string]*strategy.MemorySession{},
	}
}

// sessionFor resolves the request's session. A request without a session
// cookie falls back to a shared anonymous session, which is good enough for
// a local demo where the cookie is set by the login page.
func (s *sessionStore) sessionFor(req *http.Request) strategy.Session {
	id := "anonymous"
	if c, err := req.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := strategy.NewMemorySession()
	s.sessions[id] = sess
	return sess
}

// newSessionID mints a fresh cookie value.
func newSessionID() (string, error) {
	return oidc.NewID(oidc.WithPrefix("sess"))
}
