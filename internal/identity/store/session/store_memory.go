package session

import (
	"context"
	"sync"
	"time"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
)

type memoryRecord struct {
	state     models.State
	createdAt time.Time
	expiresAt time.Time
}

// MemoryStore mirrors the Redis contract for unit tests, including TTL
// expiry via an injectable clock.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]memoryRecord
	ttl      time.Duration
	now      func() time.Time
	failNext error
}

func NewMemory(ttl time.Duration) *MemoryStore {
	return NewMemoryWithClock(ttl, time.Now)
}

func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
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

func (s *MemoryStore) ResolveOrCreate(ctx context.Context, token string) (string, models.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return "", 0, false, dErrors.Wrap(err, dErrors.CodeTransient, "session store unavailable")
	}

	if token != "" {
		if rec, ok := s.live(token); ok {
			return token, rec.state, false, nil
		}
	}

	fresh, err := models.NewSessionToken()
	if err != nil {
		return "", 0, false, dErrors.Wrap(err, dErrors.CodeInternal, "mint session token")
	}
	now := s.now()
	s.records[fresh] = memoryRecord{
		state:     models.StateAnonymous,
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
	return fresh, models.StateAnonymous, true, nil
}

func (s *MemoryStore) ReadState(ctx context.Context, token string) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "session store unavailable")
	}
	if token == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "empty session token")
	}
	rec, ok := s.live(token)
	if !ok {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown or expired session")
	}
	return rec.state, nil
}

func (s *MemoryStore) WriteState(ctx context.Context, token string, state models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "session store unavailable")
	}
	if token == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "empty session token")
	}

	now := s.now()
	rec, ok := s.live(token)
	if !ok {
		rec = memoryRecord{createdAt: now}
	}
	rec.state = state
	rec.expiresAt = now.Add(s.ttl)
	s.records[token] = rec
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "session store unavailable")
	}
	delete(s.records, token)
	return nil
}

// live returns the record if present and unexpired, pruning expired entries
// the way the cache's TTL would.
func (s *MemoryStore) live(token string) (memoryRecord, bool) {
	rec, ok := s.records[token]
	if !ok {
		return memoryRecord{}, false
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.records, token)
		return memoryRecord{}, false
	}
	return rec, true
}
