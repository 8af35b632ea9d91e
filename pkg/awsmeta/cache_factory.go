package awsmeta

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
)

// CacheType selects the backend storing cached operation outputs.
type CacheType string

const (
	// CacheTypeMemory is the in-process backend.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS is the NATS JetStream KV backend.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone disables storage while keeping the manager surface.
	CacheTypeNone CacheType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig configures operation result caching.
type CacheConfig struct {
	// Type selects the backend.
	Type CacheType

	// Memory tunes the in-process backend.
	Memory *MemoryCacheConfig

	// NATS configures the JetStream KV backend.
	NATS *NATSKVConfig

	// Policy decides which operation outcomes are cached. When nil the
	// policy is derived from the service model's read-only operations.
	Policy *CachingPolicy

	// Options carries tuning common to all backends. Nil selects defaults.
	Options *CacheOptions
}

// MemoryCacheConfig tunes the in-process backend.
type MemoryCacheConfig struct {
	// MaxSize bounds the entry count.
	MaxSize int

	// CleanupInterval is how often expired entries are swept. Zero disables
	// the sweeper.
	CleanupInterval time.Duration
}

// DefaultCacheConfig returns the standard caching setup: a bounded in-memory
// backend with a periodic sweep.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type: CacheTypeMemory,
		Memory: &MemoryCacheConfig{
			MaxSize:         constants.DefaultCacheSize,
			CleanupInterval: time.Minute,
		},
	}
}

// NewCacheManagerForModel builds the operation-keyed cache manager a client
// uses: backend per config, policy derived from the model unless the config
// pins one.
func NewCacheManagerForModel(model *ServiceModel, config *CacheConfig) (*CacheManager, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	backend, err := newCacheBackend(config)
	if err != nil {
		return nil, err
	}

	policy := config.Policy
	if policy == nil {
		policy = ModelCachingPolicy(model)
	}

	manager := NewCacheManager(backend, policy)
	if config.Options != nil {
		manager.options = config.Options
	}

	return manager, nil
}

// ModelCachingPolicy derives a policy from a service model: successful
// outcomes of the model's read-only operations are cached, everything else
// is not. A nil model yields the default policy.
func ModelCachingPolicy(model *ServiceModel) *CachingPolicy {
	policy := DefaultCachingPolicy()
	if model == nil {
		return policy
	}

	for name, op := range model.Operations {
		if op.ReadOnly {
			policy.IncludeOperations = append(policy.IncludeOperations, name)
		}
	}

	sort.Strings(policy.IncludeOperations)

	return policy
}

func newCacheBackend(config *CacheConfig) (Cache, error) {
	switch config.Type {
	case CacheTypeMemory, "":
		memory := config.Memory
		if memory == nil {
			memory = DefaultCacheConfig().Memory
		}

		cache := NewMemoryCache(memory.MaxSize)
		if memory.CleanupInterval > 0 {
			// Sweeps for the client's lifetime.
			cache.StartCleanup(context.Background(), memory.CleanupInterval)
		}

		return cache, nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVCache(config.NATS)

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NoOpCache stores nothing. It backs CacheTypeNone and a manager built
// around a nil cache.
type NoOpCache struct{}

// NewNoOpCache creates a cache that drops every write.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return nil
}

func (c *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (c *NoOpCache) Clear(ctx context.Context) error {
	return nil
}

func (c *NoOpCache) Has(ctx context.Context, key string) bool {
	return false
}

// CacheBuilder assembles a CacheManager for a service model fluently.
type CacheBuilder struct {
	model  *ServiceModel
	config CacheConfig
}

// NewCacheBuilder starts a builder for the given model.
func NewCacheBuilder(model *ServiceModel) *CacheBuilder {
	return &CacheBuilder{
		model:  model,
		config: CacheConfig{Type: CacheTypeMemory},
	}
}

// WithType selects the backend.
func (b *CacheBuilder) WithType(cacheType CacheType) *CacheBuilder {
	b.config.Type = cacheType

	return b
}

// WithMemory tunes the in-process backend.
func (b *CacheBuilder) WithMemory(maxSize int, cleanupInterval time.Duration) *CacheBuilder {
	b.config.Memory = &MemoryCacheConfig{
		MaxSize:         maxSize,
		CleanupInterval: cleanupInterval,
	}

	return b
}

// WithNATS configures the JetStream KV backend.
func (b *CacheBuilder) WithNATS(config *NATSKVConfig) *CacheBuilder {
	b.config.NATS = config

	return b
}

// WithPolicy pins the caching policy instead of deriving it from the model.
func (b *CacheBuilder) WithPolicy(policy *CachingPolicy) *CacheBuilder {
	b.config.Policy = policy

	return b
}

// WithOptions sets backend-common tuning.
func (b *CacheBuilder) WithOptions(options *CacheOptions) *CacheBuilder {
	b.config.Options = options

	return b
}

// Build creates the manager.
func (b *CacheBuilder) Build() (*CacheManager, error) {
	return NewCacheManagerForModel(b.model, &b.config)
}

// CacheChain layers backends, fastest first. Reads back-fill earlier levels;
// writes fan out to every level.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain composes backends into one Cache.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{caches: caches}
}

// Get returns the first hit, populating the levels in front of it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}

		for j := 0; j < i; j++ {
			_ = c.caches[j].Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// Set stores the entry in every level.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.fanOut(func(cache Cache) error {
		return cache.Set(ctx, key, entry)
	})
}

// Delete removes the key from every level.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.fanOut(func(cache Cache) error {
		return cache.Delete(ctx, key)
	})
}

// Clear empties every level.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.fanOut(func(cache Cache) error {
		return cache.Clear(ctx)
	})
}

// Has reports whether any level holds a live entry.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

func (c *CacheChain) fanOut(fn func(Cache) error) error {
	var errs []error

	for _, cache := range c.caches {
		if err := fn(cache); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
