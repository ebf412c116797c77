package episoderepo

import (
	"context"
	"sort"
	"sync"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

// MemoryRepository keeps episodes in process memory. Updates to the same
// episode are serialised; different episodes proceed independently.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]episode.Record
	locks   map[string]*sync.Mutex
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]episode.Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (r *MemoryRepository) Create(_ context.Context, ep *episode.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.PatientID == ep.PatientID() && rec.Status == episode.StateActive {
			return tracking.ErrActiveEpisodeExists
		}
	}
	r.records[ep.ID()] = ep.Record()
	r.locks[ep.ID()] = &sync.Mutex{}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*episode.Episode, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, tracking.ErrEpisodeNotFound
	}
	return episode.Restore(rec)
}

func (r *MemoryRepository) FindActiveByPatient(_ context.Context, patientID string) (*episode.Episode, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.PatientID == patientID && rec.Status == episode.StateActive {
			ep, err := episode.Restore(rec)
			if err != nil {
				return nil, false, err
			}
			return ep, true, nil
		}
	}
	return nil, false, nil
}

// ListByPatient returns the patient's episodes, newest first.
func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string) ([]*episode.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*episode.Episode, 0)
	for _, rec := range r.records {
		if rec.PatientID != patientID {
			continue
		}
		ep, err := episode.Restore(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt().After(out[j].StartedAt())
	})
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, fn func(ep *episode.Episode) error) (*episode.Episode, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, tracking.ErrEpisodeNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	rec := r.records[id]
	r.mu.RUnlock()
	ep, err := episode.Restore(rec)
	if err != nil {
		return nil, err
	}
	if err := fn(ep); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.records[id] = ep.Record()
	r.mu.Unlock()
	return ep, nil
}

var _ tracking.Repository = (*MemoryRepository)(nil)
