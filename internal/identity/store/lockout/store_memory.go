package lockout

import (
	"context"
	"sync"
	"time"

	dErrors "identityd/pkg/domain-errors"
)

type entry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore mirrors the Redis contract for unit tests.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]entry
	now      func() time.Time
	failNext error
}

func NewMemory() *MemoryStore {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     now,
	}
}

// FailNext makes the next operation return err, simulating an unreachable
// store in service tests.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *MemoryStore) RecordFailure(_ context.Context, identity string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "lockout store unavailable")
	}

	e, ok := s.live(identity)
	if !ok {
		e = entry{expiresAt: s.now().Add(window)}
	}
	e.count++
	s.entries[identity] = e
	return e.count, nil
}

func (s *MemoryStore) Failures(_ context.Context, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "lockout store unavailable")
	}

	e, ok := s.live(identity)
	if !ok {
		return 0, nil
	}
	return e.count, nil
}

func (s *MemoryStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "lockout store unavailable")
	}
	delete(s.entries, identity)
	return nil
}

func (s *MemoryStore) live(identity string) (entry, bool) {
	e, ok := s.entries[identity]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, identity)
		return entry{}, false
	}
	return e, true
}
