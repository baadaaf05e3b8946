package publish

import (
	"context"
	"sync"
	"time"

	"sectorindex/internal/contracts"
)

// LatestStore keeps the most recently computed mapping in memory for the
// HTTP API. It implements contracts.Publisher.
type LatestStore struct {
	mu        sync.RWMutex
	values    map[string]contracts.SectorIndexValue
	updatedAt time.Time
}

// NewLatestStore creates an empty store.
func NewLatestStore() *LatestStore {
	return &LatestStore{values: make(map[string]contracts.SectorIndexValue)}
}

// PublishIndices replaces the stored mapping.
func (s *LatestStore) PublishIndices(_ context.Context, values []contracts.SectorIndexValue) error {
	next := make(map[string]contracts.SectorIndexValue, len(values))
	for _, v := range values {
		next[v.SectorCode] = v
	}

	s.mu.Lock()
	s.values = next
	s.updatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Get returns the latest mapping and when it was published.
func (s *LatestStore) Get() (map[string]contracts.SectorIndexValue, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]contracts.SectorIndexValue, len(s.values))
	for code, v := range s.values {
		out[code] = v
	}
	return out, s.updatedAt
}
