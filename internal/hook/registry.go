package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr/vm"

	"bulkhook-backend/internal/cache"
)

// registryCacheKey is the fixed slot in the process cache holding the
// built index.
const registryCacheKey = "kafkahook"

// Summary is the projection of a definition needed for matching.
type Summary struct {
	Name      string
	Condition string
	Docevent  string
	Doctype   string

	// compiled condition, populated lazily on first evaluation
	mu   sync.Mutex
	prog *vm.Program
}

// RegistryIndex maps entity-type name to the enabled hook summaries
// watching it, in stable store order.
type RegistryIndex map[string][]*Summary

// DefinitionLister is the slice of the definition store the registry
// cache needs.
type DefinitionLister interface {
	ListEnabledSummaries(ctx context.Context) ([]*Summary, error)
}

// RegistryCache lazily builds the RegistryIndex and holds it in the
// process cache until a definition write invalidates it. Rebuilds are
// idempotent, so concurrent rebuilds after an invalidation are tolerated.
type RegistryCache struct {
	cache *cache.Service
	defs  DefinitionLister
}

func NewRegistryCache(c *cache.Service, defs DefinitionLister) *RegistryCache {
	return &RegistryCache{cache: c, defs: defs}
}

// Get returns the cached index, building it from the definition store on
// a miss.
func (rc *RegistryCache) Get(ctx context.Context) (RegistryIndex, error) {
	v, err := rc.cache.GetOrCompute(registryCacheKey, func() (any, error) {
		return rc.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	idx, ok := v.(RegistryIndex)
	if !ok {
		return nil, fmt.Errorf("unexpected registry cache value %T", v)
	}
	return idx, nil
}

// Invalidate evicts the whole index. The next Get rebuilds from the
// current persisted set.
func (rc *RegistryCache) Invalidate() {
	rc.cache.Evict(registryCacheKey)
}

func (rc *RegistryCache) build(ctx context.Context) (RegistryIndex, error) {
	summaries, err := rc.defs.ListEnabledSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("build kafka hook registry: %w", err)
	}
	idx := make(RegistryIndex)
	for _, s := range summaries {
		idx[s.Doctype] = append(idx[s.Doctype], s)
	}
	return idx, nil
}
