package schema

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores column sets per table with an expiry.
type Cache interface {
	Get(ctx context.Context, table string) (ColumnSet, bool, error)
	Set(ctx context.Context, table string, cols ColumnSet, ttl time.Duration) error
	Delete(ctx context.Context, table string) error
}

type memEntry struct {
	cols    ColumnSet
	expires time.Time
}

// MemoryCache keeps column sets in process memory.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memEntry{}, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, table string) (ColumnSet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[table]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, table)
		return nil, false, nil
	}
	return e.cols, true, nil
}

func (c *MemoryCache) Set(_ context.Context, table string, cols ColumnSet, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[table] = memEntry{cols: cols, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, table string) error {
	c.mu.Lock()
	delete(c.entries, table)
	c.mu.Unlock()
	return nil
}

// RedisCache shares column sets between server instances. Entries are JSON
// arrays stored under <prefix>:<table> and expire through Redis TTLs.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) key(table string) string { return c.prefix + ":" + table }

func (c *RedisCache) Get(ctx context.Context, table string) (ColumnSet, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, err
	}
	return NewColumnSet(names...), true, nil
}

func (c *RedisCache) Set(ctx context.Context, table string, cols ColumnSet, ttl time.Duration) error {
	b, err := json.Marshal(cols.Names())
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(table), string(b), ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, table string) error {
	return c.rdb.Del(ctx, c.key(table)).Err()
}
