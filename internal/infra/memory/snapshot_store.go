package memory

import (
	"context"
	"sync"

	"campus-quiz-service/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore:
// one resume slot per user, overwritten on every save.
type SnapshotStore struct {
	mu    sync.RWMutex
	slots map[string]domain.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		slots: make(map[string]domain.Snapshot),
	}
}

func (s *SnapshotStore) Save(_ context.Context, userID string, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[userID] = snap
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, userID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.slots[userID]
	if !ok {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return snap, nil
}

func (s *SnapshotStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, userID)
	return nil
}
