// Package session issues anti-forgery tokens for the clear action.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a token stays valid.
const DefaultTTL = 30 * time.Minute

// ErrInvalidToken is returned when a token is unknown, expired, or was issued
// to a different session.
var ErrInvalidToken = errors.New("invalid or expired token")

type grant struct {
	session string
	expires time.Time
}

// Store holds issued tokens in memory.
type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]grant
}

// NewStore creates a token store. A zero ttl uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]grant),
	}
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Issue creates a token bound to sessionID.
func (s *Store) Issue(sessionID string) (token string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()

	token = uuid.NewString()
	expires = s.now().Add(s.ttl)
	s.tokens[token] = grant{session: sessionID, expires: expires}
	return token, expires
}

// Check verifies that token was issued to sessionID and has not expired.
func (s *Store) Check(sessionID, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()

	g, ok := s.tokens[token]
	if !ok || g.session != sessionID {
		return ErrInvalidToken
	}
	return nil
}

// Len reports the number of live tokens.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	return len(s.tokens)
}

func (s *Store) purge() {
	now := s.now()
	for tok, g := range s.tokens {
		if !now.Before(g.expires) {
			delete(s.tokens, tok)
		}
	}
}
