package authcode

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Records are copied in and out so callers
// cannot mutate stored state.
type MemoryStore struct {
	codes map[string]Details
	lock  sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes: make(map[string]Details),
	}
}

func (s *MemoryStore) Save(_ context.Context, details *Details) error {
	if err := details.validate(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.codes[details.Code] = *details
	return nil
}

func (s *MemoryStore) DetailsFor(_ context.Context, code string) (*Details, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	details, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &details, nil
}

func (s *MemoryStore) Consume(_ context.Context, code string) (*Details, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	details, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	if details.Used {
		return nil, ErrAlreadyUsed
	}
	details.Used = true
	s.codes[code] = details
	return &details, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for code, details := range s.codes {
		if !details.ExpiresAt.After(now) {
			delete(s.codes, code)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
