package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vektorkite/internal/profile/models"
	"vektorkite/internal/registration/ports"
	id "vektorkite/pkg/domain"
	"vektorkite/pkg/email"
	"vektorkite/pkg/platform/sentinel"
)

// InMemoryProfileStore backs development runs without a database.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*models.Record
	now      func() time.Time
}

func New() *InMemoryProfileStore {
	return &InMemoryProfileStore{
		profiles: make(map[id.UserID]*models.Record),
		now:      time.Now,
	}
}

// CreatePending inserts the profile or refreshes its details, keeping any
// verification already recorded.
func (s *InMemoryProfileStore) CreatePending(_ context.Context, profile ports.Profile) error {
	profile.Email = email.Normalize(profile.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, rec := range s.profiles {
		if uid != profile.UserID && rec.Email == profile.Email {
			return fmt.Errorf("profile email: %w", sentinel.ErrConflict)
		}
	}

	now := s.now()
	if rec, ok := s.profiles[profile.UserID]; ok {
		rec.Profile = profile
		rec.UpdatedAt = now
		return nil
	}
	s.profiles[profile.UserID] = &models.Record{
		Profile:            profile,
		VerificationStatus: models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return nil
}

func (s *InMemoryProfileStore) MarkVerified(_ context.Context, userID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.EmailVerified = true
	rec.EmailVerifiedAt = &at
	rec.VerificationStatus = models.StatusVerified
	rec.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryProfileStore) FindByID(_ context.Context, userID id.UserID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}
