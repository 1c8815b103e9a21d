package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTTL = 6 * time.Hour

	tableKey     = "rates.table"
	fetchedAtKey = "rates.fetched_at"
)

// KVStore is the durable slot the cache persists to.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, values map[string][]byte) error
}

// Cache holds the last fetched table in memory and in a KVStore.
type Cache struct {
	store KVStore
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	table     *Table
	fetchedAt time.Time
}

func NewCache(store KVStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Load reads the persisted slot into memory. An unreadable slot is treated as
// empty so the next refresh replaces it.
func (c *Cache) Load(ctx context.Context) error {
	raw, ok, err := c.store.Get(ctx, tableKey)
	if err != nil {
		return fmt.Errorf("read cached rates: %w", err)
	}
	if !ok {
		return nil
	}
	stamp, ok, err := c.store.Get(ctx, fetchedAtKey)
	if err != nil {
		return fmt.Errorf("read rates timestamp: %w", err)
	}

	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable cached rates", "error", err)
		return nil
	}
	var fetchedAt time.Time
	if ok {
		if fetchedAt, err = time.Parse(time.RFC3339Nano, string(stamp)); err != nil {
			slog.WarnContext(ctx, "Discarding unreadable rates timestamp", "error", err)
			fetchedAt = time.Time{}
		}
	}

	c.mu.Lock()
	c.table = &t
	c.fetchedAt = fetchedAt
	c.mu.Unlock()

	slog.DebugContext(ctx, "Loaded cached rates", "rates", t.Len(), "fetched_at", fetchedAt)
	return nil
}

// Table returns a copy of the cached table.
func (c *Cache) Table() (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil {
		return Table{}, false
	}
	return c.table.clone(), true
}

func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Save replaces the slot with t and stamps the current time.
func (c *Cache) Save(ctx context.Context, t Table) error {
	now := c.now().UTC()
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	if err := c.store.Put(ctx, map[string][]byte{
		tableKey:     raw,
		fetchedAtKey: []byte(now.Format(time.RFC3339Nano)),
	}); err != nil {
		return fmt.Errorf("store rates: %w", err)
	}

	t = t.clone()
	c.mu.Lock()
	c.table = &t
	c.fetchedAt = now
	c.mu.Unlock()
	return nil
}

// NeedsRefresh reports whether the cache is empty or older than the TTL.
func (c *Cache) NeedsRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil || c.fetchedAt.IsZero() {
		return true
	}
	return c.now().Sub(c.fetchedAt) > c.ttl
}
