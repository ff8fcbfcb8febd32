package settings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StoreReader is the slice of the persistence layer the resolver needs:
// a bulk read of all dynamic settings rows.
type StoreReader interface {
	SystemSettings(ctx context.Context) (map[string]string, error)
}

// Resolver caches a resolved Settings snapshot with a bounded lifetime.
// Reads go dynamic store -> environment -> compiled-in default per key.
type Resolver struct {
	store StoreReader
	log   *zap.Logger
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	cache    *Settings
	loadedAt time.Time
}

// NewResolver creates a resolver with the given cache TTL.
func NewResolver(store StoreReader, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		store: store,
		log:   log,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Load returns the cached snapshot if it is still within the TTL window and
// force is unset; otherwise it rebuilds from the dynamic store. A store read
// failure never surfaces: the previous cache is retained, or an
// env/default-only snapshot is built when no cache exists yet.
func (r *Resolver) Load(ctx context.Context, force bool) *Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && r.cache != nil && r.now().Sub(r.loadedAt) < r.ttl {
		return r.cache
	}

	values, err := r.store.SystemSettings(ctx)
	if err != nil {
		r.log.Warn("settings store read failed", zap.Error(err))
		if r.cache != nil {
			return r.cache
		}
		r.cache = build(nil)
		r.loadedAt = r.now()
		return r.cache
	}

	r.cache = build(values)
	r.loadedAt = r.now()
	return r.cache
}

// Current returns the latest snapshot without touching the store. If Load
// was never called it lazily builds an env/default-only snapshot and warns,
// so early callers still get a fully operable configuration.
func (r *Resolver) Current() *Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache == nil {
		r.log.Warn("settings requested before first load, using env/default values")
		r.cache = build(nil)
		r.loadedAt = r.now()
	}
	return r.cache
}
