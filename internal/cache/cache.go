package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is how long a cached upstream response stays fresh
const DefaultTTL = 24 * time.Hour

// Store is a key/value response cache with a fixed time-to-live.
// Get reports absent for missing or expired entries; an expired entry
// is removed as a side effect of the lookup.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Checker is implemented by stores that can report their health
type Checker interface {
	HealthCheck(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// GetJSON retrieves and decodes a cached value.
// A cache miss returns ok=false with a nil error.
func GetJSON[T any](ctx context.Context, s Store, key string) (value T, ok bool, err error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return value, false, err
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}

	return value, true, nil
}

// SetJSON encodes and caches a value
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return s.Set(ctx, key, data)
}
