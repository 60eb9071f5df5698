package eventlog

import (
	"context"
	"sync"
	"time"
)

type MemEventLog struct {
	mu         sync.Mutex
	events     map[string][]ViolationEvent
	categories map[string]map[string]bool
}

var _ EventLog = (*MemEventLog)(nil)

func NewMemEventLog() *MemEventLog {
	return &MemEventLog{
		events:     make(map[string][]ViolationEvent),
		categories: make(map[string]map[string]bool),
	}
}

func (s *MemEventLog) Add(ctx context.Context, ev ViolationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := eventKey(ev.Scope, ev.UserID, ev.Category)
	s.events[k] = pruneBefore(append(s.events[k], ev), ev.Time.Add(-MaxAge))
	m, ok := s.categories[ev.UserID]
	if !ok {
		m = make(map[string]bool)
		s.categories[ev.UserID] = m
	}
	m[ev.Category] = true
	return nil
}

func (s *MemEventLog) CountSince(ctx context.Context, scope, user, category string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events[eventKey(scope, user, category)] {
		if !ev.Time.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemEventLog) HasCategory(ctx context.Context, user, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[user][category], nil
}

func pruneBefore(evs []ViolationEvent, cutoff time.Time) []ViolationEvent {
	out := evs[:0]
	for _, ev := range evs {
		if !ev.Time.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}
