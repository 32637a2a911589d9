package memory

import (
	"context"
	"sort"
	"sync"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu   sync.RWMutex
	data []*domain.Activity
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert adds an activity entry.
func (s *ActivityStore) Insert(_ context.Context, a *domain.Activity) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *a
	s.data = append(s.data, &copy)
	return nil
}

// List retrieves entries per the given options, newest first.
func (s *ActivityStore) List(_ context.Context, opts storage.ListActivityOptions) ([]*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Activity
	for _, a := range s.data {
		if opts.EventType != "" && a.EventType != opts.EventType {
			continue
		}
		copy := *a
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}
