// Package redisstore keeps rate limit entries in Redis so that several
// storefront processes share counters.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/ratelimit"
)

// keyPrefix namespaces entries inside a shared Redis database.
const keyPrefix = "ratelimit:"

// minTTL keeps expirations positive; go-redis reads 0 as "no expiry" and
// -1 as "keep the existing TTL".
const minTTL = time.Second

// Store is a ratelimit.EntryStore over Redis. Entries are JSON values that
// expire on their own, so no sweep is needed.
type Store struct {
	client   *redis.Client
	staleAge time.Duration
	now      func() time.Time
}

var _ ratelimit.EntryStore = (*Store)(nil)

// Config selects the Redis server and database holding the entries.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client, staleAge: ratelimit.StaleAfter, now: time.Now}
}

// Close closes the underlying client, including one passed to NewFromClient.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the entry under key, or nil when Redis has none.
func (s *Store) Get(ctx context.Context, key string) (*models.RateLimitEntry, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry models.RateLimitEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit entry %s: %w", key, err)
	}
	return &entry, nil
}

// Save stores the entry with a TTL covering both the stale age of its
// window and any active block.
func (s *Store) Save(ctx context.Context, entry *models.RateLimitEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode rate limit entry %s: %w", entry.Key, err)
	}

	if err := s.client.Set(ctx, keyPrefix+entry.Key, data, s.ttl(entry)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Key, err)
	}
	return nil
}

func (s *Store) ttl(entry *models.RateLimitEntry) time.Duration {
	now := s.now()
	ttl := entry.WindowStart.Add(s.staleAge).Sub(now)
	if entry.BlockedUntil != nil {
		if blocked := entry.BlockedUntil.Sub(now); blocked > ttl {
			ttl = blocked
		}
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}

// Delete removes the entry under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// DeleteStale is a no-op: every entry carries a TTL that expires it once
// it would have been swept.
func (s *Store) DeleteStale(context.Context, time.Time, time.Duration) (int64, error) {
	return 0, nil
}
