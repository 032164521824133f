package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

type entry struct {
	rec     Record
	expires time.Time
}

// MemoryStore is an in-process Store. Records that nobody takes are evicted
// after ttl by a background sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	waiters map[string][]chan struct{}
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store whose records expire after ttl. A ttl of
// zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		waiters: make(map[string][]chan struct{}),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put implements Store. Writing an id twice keeps the latest record.
func (s *MemoryStore) Put(_ context.Context, id string, rec Record) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	if _, exists := s.entries[id]; !exists {
		metrics.SessionsPending.Inc()
	}
	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}
	s.entries[id] = entry{rec: rec, expires: expires}
	metrics.SessionsStored.Inc()
	waiters := s.waiters[id]
	delete(s.waiters, id)
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return nil
}

// TakeIfReady implements Store.
func (s *MemoryStore) TakeIfReady(_ context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	delete(s.entries, id)
	metrics.SessionsPending.Dec()
	if !e.expires.IsZero() && s.now().After(e.expires) {
		return nil, nil
	}
	metrics.SessionsDelivered.Inc()
	rec := e.rec
	return &rec, nil
}

// Wait implements Waiter.
func (s *MemoryStore) Wait(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	ch := make(chan struct{})
	s.mu.Lock()
	if _, ok := s.entries[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.forget(id, ch)
		return ctx.Err()
	}
}

func (s *MemoryStore) forget(id string, ready chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.waiters[id]
	for i, ch := range chans {
		if ch == ready {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(chans) == 0 {
		delete(s.waiters, id)
		return
	}
	s.waiters[id] = chans
}

// Len reports the number of undelivered records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts expired records and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.entries, id)
			n++
		}
	}
	metrics.SessionsPending.Sub(float64(n))
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("session_sweep", "evicted", n)
			}
		}
	}
}
