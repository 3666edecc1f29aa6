package documents

import (
	"sync"
	"time"
)

// Session is the identity state of the facade. It is created once and
// re-validated by every operation through Authorize.
type Session struct {
	mu          sync.RWMutex
	userID      string
	userName    string
	validatedAt time.Time
	lastFailure time.Time
}

// SessionInfo is a read-only copy of the session for status reporting.
type SessionInfo struct {
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	ValidatedAt time.Time `json:"validated_at"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	Authorized  bool      `json:"authorized"`
}

// UserID returns the user id recorded by the last successful Authorize.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		UserID:      s.userID,
		UserName:    s.userName,
		ValidatedAt: s.validatedAt,
		LastFailure: s.lastFailure,
		Authorized:  !s.validatedAt.IsZero() && s.validatedAt.After(s.lastFailure),
	}
}

func (s *Session) validated(userID, userName string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.userName = userName
	s.validatedAt = at
}

func (s *Session) failed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFailure = at
}
