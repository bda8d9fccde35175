package memory

import (
	"sync"

	"github.com/plancompass/onboarding/internal/domain"
)

// SessionStore is the in-memory domain.SessionStore for local mode and
// tests. The compare-and-swap in SaveSession happens under one lock, which
// is all the serialization a single process needs.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	byUser   map[domain.UserID][]domain.SessionID

	// activeByUser enforces at most one active session per user, which is
	// what makes createOrResume idempotent under concurrent calls.
	activeByUser map[domain.UserID]domain.SessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:     make(map[domain.SessionID]*domain.Session),
		byUser:       make(map[domain.UserID][]domain.SessionID),
		activeByUser: make(map[domain.UserID]domain.SessionID),
	}
}

func (s *SessionStore) CreateSession(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return domain.ErrSessionExists
	}
	if session.State == domain.SessionActive {
		if _, exists := s.activeByUser[session.UserID]; exists {
			return domain.ErrSessionExists
		}
		s.activeByUser[session.UserID] = session.ID
	}

	s.sessions[session.ID] = session.Clone()
	s.byUser[session.UserID] = append(s.byUser[session.UserID], session.ID)
	return nil
}

func (s *SessionStore) GetSession(id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

func (s *SessionStore) LatestSessionByUser(userID domain.UserID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Session
	for _, id := range s.byUser[userID] {
		sess := s.sessions[id]
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, domain.ErrSessionNotFound
	}

	return latest.Clone(), nil
}

// SaveSession applies the update only if the stored active nonce still
// matches expectedNonce. All-or-nothing: a conflict changes nothing.
func (s *SessionStore) SaveSession(session *domain.Session, expectedNonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}

	if stored.ActiveNonce() != expectedNonce {
		return domain.ErrConflict
	}

	if stored.State == domain.SessionActive && session.State != domain.SessionActive {
		delete(s.activeByUser, session.UserID)
	}
	if stored.State != domain.SessionActive && session.State == domain.SessionActive {
		// Reset of a completed session re-activates it.
		if other, exists := s.activeByUser[session.UserID]; exists && other != session.ID {
			return domain.ErrSessionExists
		}
		s.activeByUser[session.UserID] = session.ID
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}
