// Package logstore provides the screening log persistence backends: an
// in-memory LRU store for single-node deployments, a SQLite store for
// durable local storage, and a PostgreSQL store for shared deployments.
package logstore

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/evidence-triage-server/internal/domain"
)

// MemoryStore keeps screening logs in a bounded LRU cache. When capacity is
// reached the least recently accessed log is evicted; callers that need
// durable retention should use the SQLite or PostgreSQL store instead.
type MemoryStore struct {
	mu   sync.Mutex
	logs *lru.Cache[string, *domain.ScreeningLog]
}

// NewMemoryStore creates a memory store retaining up to capacity logs.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	cache, err := lru.New[string, *domain.ScreeningLog](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{logs: cache}, nil
}

// Create stores a new log keyed by its query id.
func (s *MemoryStore) Create(ctx context.Context, log *domain.ScreeningLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs.Add(log.QueryID, log)
	return nil
}

// Update overwrites the stored log for its query id.
func (s *MemoryStore) Update(ctx context.Context, log *domain.ScreeningLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs.Peek(log.QueryID); !ok {
		return domain.ErrLogNotFound
	}
	s.logs.Add(log.QueryID, log)
	return nil
}

// Get retrieves a log by query id.
func (s *MemoryStore) Get(ctx context.Context, queryID string) (*domain.ScreeningLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs.Get(queryID)
	if !ok {
		return nil, domain.ErrLogNotFound
	}
	return log, nil
}

// List returns stored logs ordered by start time descending.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]*domain.ScreeningLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*domain.ScreeningLog, 0, s.logs.Len())
	for _, key := range s.logs.Keys() {
		if log, ok := s.logs.Peek(key); ok {
			all = append(all, log)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Delete removes a log by query id.
func (s *MemoryStore) Delete(ctx context.Context, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.logs.Remove(queryID) {
		return domain.ErrLogNotFound
	}
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
