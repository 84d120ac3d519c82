package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
)

// Memory is the process-lifetime response cache. Entries live until their
// TTL elapses or they are invalidated; there is no size-based eviction.
type Memory struct {
	store gcache.Cache
	ttl   time.Duration
}

// MemoryOption customizes a Memory store
type MemoryOption func(*gcache.CacheBuilder)

// WithClock replaces the wall clock, mostly for tests
func WithClock(clock gcache.Clock) MemoryOption {
	return func(b *gcache.CacheBuilder) {
		b.Clock(clock)
	}
}

// NewMemory creates an in-process store whose entries expire after ttl
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// Size 0 with the simple policy means unbounded.
	builder := gcache.New(0).Simple().Expiration(ttl)
	for _, opt := range opts {
		opt(builder)
	}

	return &Memory{store: builder.Build(), ttl: ttl}
}

// Get returns a copy of the stored value if it is still fresh
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := m.store.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	data, ok := v.([]byte)
	if !ok {
		m.store.Remove(key)
		return nil, false, nil
	}

	return append([]byte(nil), data...), true, nil
}

// Set stores value under key with the current timestamp, replacing any previous entry
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	return m.store.Set(key, append([]byte(nil), value...))
}

// Invalidate removes a single entry
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.store.Remove(key)
	return nil
}

// Clear removes every entry
func (m *Memory) Clear(_ context.Context) error {
	m.store.Purge()
	return nil
}

// Len returns the number of fresh entries
func (m *Memory) Len() int {
	return m.store.Len(true)
}

// HealthCheck always succeeds for the in-process store
func (m *Memory) HealthCheck(_ context.Context) error {
	return nil
}

// Stats returns hit/miss counters
func (m *Memory) Stats(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"backend":  "memory",
		"entries":  m.Len(),
		"hits":     m.store.HitCount(),
		"misses":   m.store.MissCount(),
		"hit_rate": m.store.HitRate(),
		"ttl":      m.ttl.String(),
	}, nil
}
