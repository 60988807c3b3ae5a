package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// EntryStore persists rate limit entries by key.
type EntryStore interface {
	// Get returns the entry for key, or nil, nil when there is none.
	Get(ctx context.Context, key string) (*models.RateLimitEntry, error)

	// Save inserts or replaces the entry for entry.Key.
	Save(ctx context.Context, entry *models.RateLimitEntry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteStale removes entries whose window started more than maxAge
	// before now and which are not blocked at now.
	DeleteStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error)
}

// MemoryStore keeps entries in a map. It is the default store and is
// local to one process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.RateLimitEntry
}

// NewMemoryStore creates an empty in-memory entry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.RateLimitEntry)}
}

// Get returns a copy of the entry under key, or nil when there is none.
func (m *MemoryStore) Get(_ context.Context, key string) (*models.RateLimitEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return copyEntry(entry), nil
}

// Save stores a copy of entry under entry.Key.
func (m *MemoryStore) Save(_ context.Context, entry *models.RateLimitEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entry.Key] = *copyEntry(*entry)
	return nil
}

// Delete removes the entry under key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// DeleteStale removes unblocked entries whose window started more than
// maxAge before now and returns how many it removed.
func (m *MemoryStore) DeleteStale(_ context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, entry := range m.entries {
		if entry.Stale(now, maxAge) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// copyEntry detaches BlockedUntil so callers cannot mutate stored state.
func copyEntry(e models.RateLimitEntry) *models.RateLimitEntry {
	if e.BlockedUntil != nil {
		until := *e.BlockedUntil
		e.BlockedUntil = &until
	}
	return &e
}

// RepositoryStore keeps entries in the rate_limit_entries table so that
// several processes sharing one database share counters.
type RepositoryStore struct {
	repo repository.RateLimitRepository
}

// NewRepositoryStore creates an entry store over repo.
func NewRepositoryStore(repo repository.RateLimitRepository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) Get(ctx context.Context, key string) (*models.RateLimitEntry, error) {
	return s.repo.GetEntry(ctx, key)
}

func (s *RepositoryStore) Save(ctx context.Context, entry *models.RateLimitEntry) error {
	return s.repo.SaveEntry(ctx, entry)
}

func (s *RepositoryStore) Delete(ctx context.Context, key string) error {
	return s.repo.DeleteEntry(ctx, key)
}

func (s *RepositoryStore) DeleteStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	return s.repo.DeleteStale(ctx, now, maxAge)
}

var (
	_ EntryStore = (*MemoryStore)(nil)
	_ EntryStore = (*RepositoryStore)(nil)
)
