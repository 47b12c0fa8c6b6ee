// Package memstore contains in-memory implementations of the storage
// interfaces, used when no external persistence is configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitford/edgegate/internal/domain"
	"github.com/mwhitford/edgegate/internal/store"
)

// ProfileStore implements store.ProfileStore on a mutex-guarded map.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]domain.Profile
}

var _ store.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore creates an empty in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[uuid.UUID]domain.Profile)}
}

// Create implements store.ProfileStore.Create.
func (s *ProfileStore) Create(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = *profile
	return nil
}

// GetByID implements store.ProfileStore.GetByID.
func (s *ProfileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	return &p, nil
}

// List implements store.ProfileStore.List. Results are ordered by creation
// time with the ID as a tiebreaker so paging is stable.
func (s *ProfileStore) List(_ context.Context, limit, offset int) ([]*domain.Profile, int, error) {
	s.mu.RLock()
	all := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, p)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	total := len(all)
	if offset >= total {
		return []*domain.Profile{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*domain.Profile, 0, end-offset)
	for i := offset; i < end; i++ {
		p := all[i]
		page = append(page, &p)
	}
	return page, total, nil
}

// Update implements store.ProfileStore.Update. The version comparison and
// the write share the critical section, so concurrent updates based on the
// same version resolve to exactly one winner.
func (s *ProfileStore) Update(_ context.Context, profile *domain.Profile, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[profile.ID]
	if !ok {
		return store.ErrProfileNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	profile.Version = current.Version + 1
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = *profile
	return nil
}
