package profile

import (
	"context"

	"github.com/plancompass/onboarding/internal/domain"
)

// Service holds the logic of reading generated profiles
type Service struct {
	store domain.ProfileStore
}

// NewService creates a profile service from a ProfileStore
func NewService(store domain.ProfileStore) *Service {
	return &Service{
		store: store,
	}
}

// GetUserProfile returns the user's generated profile, or ErrProfileNotFound
// while onboarding has not reached the terminal step yet.
func (s *Service) GetUserProfile(
	ctx context.Context,
	userID domain.UserID,
) (*domain.FinancialProfile, error) {

	if s.store == nil {
		// Backends without a profile store behave as "not generated yet".
		return nil, domain.ErrProfileNotFound
	}

	// ctx is unused for now; the memory store does not take one, but the
	// interface could be extended in the future
	return s.store.GetProfileByUser(userID)
}
