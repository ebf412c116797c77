package statusstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

type statusRecord struct {
	payload   episode.Status
	expiresAt time.Time
}

// MemoryStore keeps composed statuses in process memory for tests/dev.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]statusRecord
	now      func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]statusRecord),
		now:      time.Now,
	}
}

// SaveStatus caches the status with optional TTL. A live entry for a later
// snapshot is kept.
func (s *MemoryStore) SaveStatus(_ context.Context, status episode.Status, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.statuses[status.EpisodeID]; ok && !s.expired(current) &&
		current.payload.SnapshotSeq > status.SnapshotSeq {
		return nil
	}
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	status.DangerSigns = append([]episode.DangerSign{}, status.DangerSigns...)
	s.statuses[status.EpisodeID] = statusRecord{payload: status, expiresAt: exp}
	return nil
}

// GetStatus implements tracking.StatusStore.
func (s *MemoryStore) GetStatus(_ context.Context, episodeID string) (episode.Status, bool, error) {
	s.mu.RLock()
	record, ok := s.statuses[episodeID]
	s.mu.RUnlock()
	if !ok {
		return episode.Status{}, false, nil
	}
	if s.expired(record) {
		s.mu.Lock()
		delete(s.statuses, episodeID)
		s.mu.Unlock()
		return episode.Status{}, false, nil
	}
	status := record.payload
	status.DangerSigns = append([]episode.DangerSign{}, status.DangerSigns...)
	return status, true, nil
}

func (s *MemoryStore) expired(record statusRecord) bool {
	return !record.expiresAt.IsZero() && record.expiresAt.Before(s.now())
}

var _ tracking.StatusStore = (*MemoryStore)(nil)
