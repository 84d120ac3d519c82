package cache

import (
	"context"
	"sync"
)

type hitKey struct{}

// HitRecorder collects whether every lookup made under a context was
// answered from the cache. Safe for concurrent use.
type HitRecorder struct {
	mu      sync.Mutex
	lookups int
	misses  int
}

// WithHitRecorder attaches a recorder to ctx
func WithHitRecorder(ctx context.Context) (context.Context, *HitRecorder) {
	rec := &HitRecorder{}
	return context.WithValue(ctx, hitKey{}, rec), rec
}

// RecordLookup notes a cache lookup on the recorder carried by ctx, if any
func RecordLookup(ctx context.Context, hit bool) {
	rec, ok := ctx.Value(hitKey{}).(*HitRecorder)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lookups++
	if !hit {
		rec.misses++
	}
}

// Hit reports true when at least one lookup happened and none missed
func (r *HitRecorder) Hit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups > 0 && r.misses == 0
}
