package user

import (
	"context"
	"sync"

	"identityd/internal/identity/models"
	dErrors "identityd/pkg/domain-errors"
)

// MemoryStore mirrors the Postgres contract for unit tests, including the
// uniqueness constraints on username and email.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]models.User
	failNext error
}

func NewMemory() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.User)}
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

func (s *MemoryStore) Insert(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "user store unavailable")
	}

	for _, existing := range s.byID {
		if existing.Username == user.Username {
			return dErrors.New(dErrors.CodeConflict, "username already taken")
		}
		if existing.Email == user.Email {
			return dErrors.New(dErrors.CodeConflict, "email already taken")
		}
	}
	s.byID[user.ID] = user
	return nil
}

func (s *MemoryStore) FindByIdentity(_ context.Context, identity string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeTransient, "user store unavailable")
	}

	for _, existing := range s.byID {
		if existing.Username == identity || existing.Email == identity {
			return existing, nil
		}
	}
	return models.User{}, dErrors.New(dErrors.CodeNotFound, "unknown identity")
}

// Count reports how many records exist; used by concurrency tests to assert
// exactly-one semantics.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
