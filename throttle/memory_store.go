package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps AttemptRecords in process memory. It suits
// single-instance deployments and tests; multiple instances need a shared
// store such as RedisStore or sqlstore.AttemptStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]AttemptRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]AttemptRecord)}
}

// Get returns a copy of the record for identity.
func (s *MemoryStore) Get(ctx context.Context, identity string) (*AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rec, ok := s.records[identity]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RecordFailure applies NextFailure under the store mutex.
func (s *MemoryStore) RecordFailure(ctx context.Context, identity string, now time.Time, policy Policy) (AttemptRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return AttemptRecord{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *AttemptRecord
	if rec, ok := s.records[identity]; ok {
		prev = &rec
	}
	next, counted := NextFailure(prev, identity, now, policy)
	if counted {
		s.records[identity] = next
	}
	return next, counted, nil
}

// Delete removes the record for identity.
func (s *MemoryStore) Delete(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, identity)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked identities.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
