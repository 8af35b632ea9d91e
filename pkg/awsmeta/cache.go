package awsmeta

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound  = errors.New("key not found")
	ErrCacheEntryExpired = errors.New("cache entry expired")
)

// CacheEntry is one stored response body with its freshness metadata.
type CacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
	ETag      string
}

// Expired reports whether the entry's lifetime has elapsed.
func (e *CacheEntry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Cache is a pluggable backend for operation result caching.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// MemoryCache is an in-process Cache with a bounded entry count. When full
// it evicts the entry closest to expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates an in-memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get retrieves an entry, treating expiry as absence.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	if entry.Expired() {
		_ = c.Delete(ctx, key)

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores an entry, evicting the soonest-to-expire entry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

// evictLocked removes the entry with the earliest expiry. Caller holds mu.
func (c *MemoryCache) evictLocked() {
	var (
		victim   string
		earliest time.Time
	)

	for key, entry := range c.entries {
		if victim == "" || entry.ExpiresAt.Before(earliest) {
			victim = key
			earliest = entry.ExpiresAt
		}
	}

	if victim != "" {
		delete(c.entries, victim)
	}
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()

	return nil
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	return ok && !entry.Expired()
}

// Cleanup drops all expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

// StartCleanup runs Cleanup on an interval until the context is cancelled.
func (c *MemoryCache) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// GetHitRate returns the fraction of lookups served from cache.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheOptions carries tuning common to all backends.
type CacheOptions struct {
	// DefaultTTL applies when the caller supplies no TTL.
	DefaultTTL time.Duration
}

// DefaultCacheOptions returns the standard cache tuning.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL: constants.DefaultCacheTTL,
	}
}

// CachingPolicy decides which operation outcomes are cacheable. The default
// policy caches successful outcomes of read-only operations.
type CachingPolicy struct {
	// CacheReadOnly caches operations the model marks read-only.
	CacheReadOnly bool

	// CacheMutations also caches non-read-only operations. Rarely wanted.
	CacheMutations bool

	// CacheErrors caches non-2xx outcomes.
	CacheErrors bool

	// IncludeOperations, when non-empty, restricts caching to these names.
	IncludeOperations []string

	// ExcludeOperations are never cached.
	ExcludeOperations []string
}

// DefaultCachingPolicy returns the standard policy.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheReadOnly: true,
	}
}

// ShouldCache reports whether the outcome of one operation call belongs in
// the cache.
func (p *CachingPolicy) ShouldCache(model *OperationModel, statusCode int) bool {
	if model == nil {
		return false
	}

	for _, name := range p.ExcludeOperations {
		if name == model.Name {
			return false
		}
	}

	if len(p.IncludeOperations) > 0 {
		included := false

		for _, name := range p.IncludeOperations {
			if name == model.Name {
				included = true

				break
			}
		}

		if !included {
			return false
		}
	}

	if !p.CacheErrors && (statusCode < 200 || statusCode >= 300) {
		return false
	}

	if model.ReadOnly {
		return p.CacheReadOnly
	}

	return p.CacheMutations
}

// CacheManager fronts a Cache with key derivation, a caching policy, and
// hit/miss accounting.
type CacheManager struct {
	cache  Cache
	policy *CachingPolicy

	mu    sync.Mutex
	stats CacheStats

	options *CacheOptions
}

// NewCacheManager wraps a cache backend. A nil cache disables storage, a nil
// policy selects the default.
func NewCacheManager(cache Cache, policy *CachingPolicy) *CacheManager {
	if cache == nil {
		cache = NewNoOpCache()
	}

	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	return &CacheManager{
		cache:   cache,
		policy:  policy,
		options: DefaultCacheOptions(),
	}
}

// Policy returns the manager's caching policy.
func (m *CacheManager) Policy() *CachingPolicy {
	return m.policy
}

// GetCacheKey derives a stable key from a service, operation, and its
// parameters. Parameters are serialized in sorted order so logically equal
// calls share a key.
func (m *CacheManager) GetCacheKey(service, operation string, params map[string]interface{}) string {
	base := service + ":" + operation
	if len(params) == 0 {
		return base
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var builder strings.Builder

	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}

		fmt.Fprintf(&builder, "%s=%v", key, params[key])
	}

	return base + ":" + builder.String()
}

// Get retrieves cached data, recording a hit or miss.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.cache.Get(ctx, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.stats.Misses++

		return nil, err
	}

	m.stats.Hits++

	return entry.Data, nil
}

// Set stores data under key for ttl.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetWithETag(ctx, key, data, "", ttl)
}

// SetWithETag stores data with a validator tag for conditional refreshes.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.options.DefaultTTL
	}

	err := m.cache.Set(ctx, key, &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		ETag:      etag,
	})
	if err != nil {
		return fmt.Errorf("caching entry: %w", err)
	}

	m.mu.Lock()
	m.stats.Sets++
	m.mu.Unlock()

	return nil
}

// Invalidate removes a single key.
func (m *CacheManager) Invalidate(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// Clear drops everything.
func (m *CacheManager) Clear(ctx context.Context) error {
	return m.cache.Clear(ctx)
}

// GetStats returns a snapshot of the counters.
func (m *CacheManager) GetStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}
