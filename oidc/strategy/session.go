package strategy

import (
	"net/http"
	"sync"
)

// Session is the per-request session capability the strategy keeps flow
// state in. It is exclusively owned by the request that carries it; the
// strategy never stores flow state anywhere else and never shares a Session
// across requests, so implementations don't need any cross-request
// synchronization of their own.
type Session interface {
	// Get returns the value stored under key and whether an entry exists at
	// all. An existing entry with an empty value is still an entry.
	Get(key string) ([]byte, bool)

	// Set stores value under key, replacing any existing entry.
	Set(key string, value []byte)

	// Delete removes the entry under key, if any.
	Delete(key string)
}

// SessionFunc extracts the Session attached to a request. Returning nil
// means the request has no session support, which the strategy treats as a
// configuration fault.
type SessionFunc func(*http.Request) Session

// FlowState is the anti-forgery and replay-protection material persisted in
// the session between the authorization redirect and its callback. It is
// one-shot: the callback consumes and deletes it before doing anything else,
// so a replayed callback finds nothing.
type FlowState struct {
	// State is the opaque value round-tripped through the provider to bind
	// the callback to the initiating session.
	State string `json:"state"`

	// Nonce is the opaque value bound into the id_token to prevent replay.
	// Only present for flows that can return an id_token outside the
	// back-channel code exchange.
	Nonce string `json:"nonce,omitempty"`

	// MaxAge is the max_age the flow was started with, in seconds.
	MaxAge uint `json:"max_age,omitempty"`

	// ResponseType is the response_type the flow was started with.
	ResponseType string `json:"response_type,omitempty"`

	// CodeVerifier is the PKCE code verifier, when PKCE is enabled.
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// MemorySession is a Session backed by a map. It's suitable for tests and
// examples; production deployments will adapt whatever session layer their
// framework provides.
type MemorySession struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemorySession creates an empty MemorySession.
func NewMemorySession() *MemorySession {
	return &MemorySession{
		values: map[string][]byte{},
	}
}

// Get implements Session.Get
func (s *MemorySession) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements Session.Set
func (s *MemorySession) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete implements Session.Delete
func (s *MemorySession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Len returns the number of entries in the session.
func (s *MemorySession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
