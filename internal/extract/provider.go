package extract

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// RuleStore is the persistence slice the provider reads rule sets from.
type RuleStore interface {
	ExtractionRules(ctx context.Context, platform model.Platform) (*model.ExtractionRuleSet, error)
}

// Provider caches one ExtractionRuleSet per platform. Entries live until an
// administrative cache-bust signal, never expiring by TTL: rule edits are
// rare and explicit, and readers must always see a consistent snapshot.
type Provider struct {
	store RuleStore
	log   *zap.Logger

	mu    sync.RWMutex
	cache map[model.Platform]*model.ExtractionRuleSet
}

// NewProvider creates an empty rule provider.
func NewProvider(store RuleStore, log *zap.Logger) *Provider {
	return &Provider{
		store: store,
		log:   log,
		cache: make(map[model.Platform]*model.ExtractionRuleSet),
	}
}

// Rules returns the cached rule set for a platform, loading it on first use
// or after an invalidation. Selector rules are ordered by descending
// priority; empty pattern lists fall back to the compiled-in defaults so the
// engine always has something to match against.
func (p *Provider) Rules(ctx context.Context, platform model.Platform) (*model.ExtractionRuleSet, error) {
	p.mu.RLock()
	rs, ok := p.cache[platform]
	p.mu.RUnlock()
	if ok {
		return rs, nil
	}

	loaded, err := p.store.ExtractionRules(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("load extraction rules for %s: %w", platform, err)
	}
	if loaded == nil {
		loaded = &model.ExtractionRuleSet{Platform: platform}
	}

	sort.SliceStable(loaded.Selectors, func(i, j int) bool {
		return loaded.Selectors[i].Priority > loaded.Selectors[j].Priority
	})
	if len(loaded.AvailablePatterns) == 0 {
		loaded.AvailablePatterns = defaultAvailable
	}
	if len(loaded.UnavailablePatterns) == 0 {
		loaded.UnavailablePatterns = defaultUnavailable
	}
	loaded.LoadedAt = time.Now()

	p.mu.Lock()
	// Another goroutine may have loaded meanwhile; keep the first snapshot
	// so concurrent readers agree.
	if existing, ok := p.cache[platform]; ok {
		p.mu.Unlock()
		return existing, nil
	}
	p.cache[platform] = loaded
	p.mu.Unlock()

	p.log.Info("extraction rules loaded",
		zap.String("platform", string(platform)),
		zap.Int("selectors", len(loaded.Selectors)))
	return loaded, nil
}

// Invalidate drops the cached rule set for one platform, or for all
// platforms when platform is empty. The next Rules call reloads.
func (p *Provider) Invalidate(platform model.Platform) {
	p.mu.Lock()
	if platform == "" {
		p.cache = make(map[model.Platform]*model.ExtractionRuleSet)
	} else {
		delete(p.cache, platform)
	}
	p.mu.Unlock()
	p.log.Info("extraction rule cache invalidated", zap.String("platform", string(platform)))
}
