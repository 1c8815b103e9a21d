package rates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type mapKV struct {
	mu     sync.Mutex
	values map[string][]byte
	putErr error
}

func newMapKV() *mapKV {
	return &mapKV{values: make(map[string][]byte)}
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapKV) Put(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleTable() Table {
	return Table{
		Base: "USD",
		Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"EUR": decimal.RequireFromString("0.92"),
			"JPY": decimal.RequireFromString("149.5"),
			"BTC": decimal.RequireFromString("65000"),
		},
	}
}

func TestCacheStaleness(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := NewCache(newMapKV(), DefaultTTL).WithClock(clock.Now)
	ctx := context.Background()

	if !c.NeedsRefresh() {
		t.Fatalf("empty cache must need a refresh")
	}
	if err := c.Save(ctx, sampleTable()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.NeedsRefresh() {
		t.Fatalf("fresh cache must not need a refresh")
	}

	clock.Advance(6 * time.Hour)
	if c.NeedsRefresh() {
		t.Fatalf("cache exactly at the TTL is still fresh")
	}
	clock.Advance(time.Second)
	if !c.NeedsRefresh() {
		t.Fatalf("cache older than the TTL must need a refresh")
	}
}

func TestCacheLoadRestoresPersistedSlot(t *testing.T) {
	kv := newMapKV()
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	if err := NewCache(kv, time.Hour).WithClock(clock.Now).Save(ctx, sampleTable()); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewCache(kv, time.Hour).WithClock(clock.Now)
	if _, ok := restored.Table(); ok {
		t.Fatalf("table available before Load")
	}
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	table, ok := restored.Table()
	if !ok {
		t.Fatalf("table missing after Load")
	}
	if rate, _ := table.Rate("JPY"); !rate.Equal(decimal.RequireFromString("149.5")) {
		t.Fatalf("JPY = %s", rate)
	}
	if !restored.FetchedAt().Equal(clock.Now()) {
		t.Fatalf("fetched at = %s, want %s", restored.FetchedAt(), clock.Now())
	}
	if restored.NeedsRefresh() {
		t.Fatalf("restored cache should be fresh")
	}
}

func TestCacheLoadIgnoresCorruptSlot(t *testing.T) {
	kv := newMapKV()
	kv.values[tableKey] = []byte("{broken")
	c := NewCache(kv, time.Hour)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.NeedsRefresh() {
		t.Fatalf("corrupt slot should read as empty")
	}
}

func TestCacheSaveFailureKeepsPreviousTable(t *testing.T) {
	kv := newMapKV()
	c := NewCache(kv, time.Hour)
	ctx := context.Background()
	if err := c.Save(ctx, sampleTable()); err != nil {
		t.Fatalf("save: %v", err)
	}

	kv.putErr = errors.New("read-only")
	next := sampleTable()
	next.Rates["EUR"] = decimal.RequireFromString("0.5")
	if err := c.Save(ctx, next); err == nil {
		t.Fatalf("expected save error")
	}
	table, _ := c.Table()
	if rate, _ := table.Rate("EUR"); !rate.Equal(decimal.RequireFromString("0.92")) {
		t.Fatalf("in-memory table replaced after failed save: EUR=%s", rate)
	}
}

func TestCacheTableIsACopy(t *testing.T) {
	c := NewCache(newMapKV(), time.Hour)
	if err := c.Save(context.Background(), sampleTable()); err != nil {
		t.Fatalf("save: %v", err)
	}
	table, _ := c.Table()
	table.Rates["EUR"] = decimal.Zero

	again, _ := c.Table()
	if _, ok := again.Rate("EUR"); !ok {
		t.Fatalf("mutating a returned table changed the cache")
	}
}
