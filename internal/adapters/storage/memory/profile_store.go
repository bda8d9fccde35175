package memory

import (
	"sync"

	"github.com/plancompass/onboarding/internal/domain"
)

// ProfileStore is a simple in-memory implementation of domain.ProfileStore.
// It is NOT persistent and is only suitable for development / local mode.
type ProfileStore struct {
	mu       sync.RWMutex
	byUserID map[domain.UserID]*domain.FinancialProfile
}

// NewProfileStore creates a new in-memory ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		byUserID: make(map[domain.UserID]*domain.FinancialProfile),
	}
}

// PutProfile saves the profile, replacing any prior one for the user.
func (s *ProfileStore) PutProfile(profile *domain.FinancialProfile) error {
	if profile == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *profile
	s.byUserID[profile.UserID] = &copied
	return nil
}

// GetProfileByUser returns the user's profile or ErrProfileNotFound.
func (s *ProfileStore) GetProfileByUser(userID domain.UserID) (*domain.FinancialProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byUserID[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}

	copied := *p
	return &copied, nil
}
