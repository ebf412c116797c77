package alertsink

import (
	"context"
	"sync"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

// MemorySink keeps alerts in process memory. Subscribers are invoked
// synchronously on publish and must not block.
type MemorySink struct {
	mu        sync.RWMutex
	alerts    []tracking.Alert
	maxAlerts int

	subMu       sync.RWMutex
	nextSub     int
	subscribers map[int]func(episode.AlertEvent)
}

// NewMemorySink constructs a sink retaining at most maxAlerts entries.
func NewMemorySink(maxAlerts int) *MemorySink {
	if maxAlerts <= 0 {
		maxAlerts = 500
	}
	return &MemorySink{maxAlerts: maxAlerts, subscribers: make(map[int]func(episode.AlertEvent))}
}

// Publish stores the alert and notifies subscribers.
func (s *MemorySink) Publish(_ context.Context, event episode.AlertEvent) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, tracking.Alert{AlertEvent: event})
	if len(s.alerts) > s.maxAlerts {
		s.alerts = append([]tracking.Alert(nil), s.alerts[len(s.alerts)-s.maxAlerts:]...)
	}
	s.mu.Unlock()

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(event)
	}
	return nil
}

// Subscribe delivers every future alert to fn until ctx is cancelled. Once it
// returns fn is never called again.
func (s *MemorySink) Subscribe(ctx context.Context, fn func(episode.AlertEvent)) error {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	<-ctx.Done()

	s.subMu.Lock()
	delete(s.subscribers, id)
	s.subMu.Unlock()
	return nil
}

func (s *MemorySink) subscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// Recent returns the newest alerts first.
func (s *MemorySink) Recent(_ context.Context, limit int) ([]tracking.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]tracking.Alert, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

func (s *MemorySink) MarkRead(_ context.Context, alertID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *MemorySink) Dismiss(_ context.Context, alertID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var _ tracking.Alerts = (*MemorySink)(nil)
