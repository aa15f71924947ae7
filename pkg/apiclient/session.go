package apiclient

import (
	"errors"
	"sync"
)

// ErrNoSession is returned when a call needs a token and none is held.
var ErrNoSession = errors.New("sessão expirada, faça login novamente")

// Session holds the bearer token between login and logout.
type Session struct {
	mu    sync.RWMutex
	token string
}

func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Token returns the held token or ErrNoSession.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoSession
	}
	return s.token, nil
}

func (s *Session) Clear() {
	s.Set("")
}
