package session

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndCheck(t *testing.T) {
	s := NewStore(time.Minute)
	tok, exp := s.Issue("browser-1")
	if tok == "" {
		t.Fatal("empty token")
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry in the past: %v", exp)
	}
	if err := s.Check("browser-1", tok); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := s.Check("browser-1", tok); err != nil {
		t.Errorf("token should stay valid for the session: %v", err)
	}
}

func TestCheckRejects(t *testing.T) {
	s := NewStore(time.Minute)
	tok, _ := s.Issue("a")

	tests := []struct {
		name    string
		session string
		token   string
	}{
		{"empty token", "a", ""},
		{"unknown token", "a", "not-a-token"},
		{"other session", "b", tok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Check(tt.session, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(10 * time.Minute)
	s.now = func() time.Time { return now }

	tok, _ := s.Issue("a")
	now = now.Add(9 * time.Minute)
	if err := s.Check("a", tok); err != nil {
		t.Fatalf("token expired early: %v", err)
	}

	now = now.Add(time.Minute)
	if err := s.Check("a", tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expiry, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expired token not purged, len = %d", s.Len())
	}
}

func TestDefaultTTL(t *testing.T) {
	s := NewStore(0)
	if s.ttl != DefaultTTL {
		t.Errorf("ttl = %v", s.ttl)
	}
	if NewID() == NewID() {
		t.Error("session ids should be unique")
	}
}
