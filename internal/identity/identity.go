// Package identity supplies the signed-in user to the tracking engine.
package identity

import "sync"

// Provider reports the active user. ok is false when nobody is signed in.
type Provider interface {
	UserID() (id string, ok bool)
}

// Static is a fixed user id; the empty string means signed out
type Static string

func (s Static) UserID() (string, bool) {
	return string(s), s != ""
}

// Session is a Provider whose user can change at runtime (sign-in/sign-out)
type Session struct {
	mu sync.RWMutex
	id string
}

func NewSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// SignIn switches the active user
func (s *Session) SignIn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// SignOut clears the active user
func (s *Session) SignOut() {
	s.SignIn("")
}
