package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/zeusync/chaoscache/internal/core/observability/log"
	"github.com/zeusync/chaoscache/internal/core/observability/metrics"
	"github.com/zeusync/chaoscache/pkg/concurrent"
	"github.com/zeusync/chaoscache/pkg/sequence"
)

type CollectionOption func(*Collection)

func WithCollectionLogger(l log.Log) CollectionOption {
	return func(c *Collection) { c.logger = l }
}

func WithCollectionMetrics(m *metrics.Collector) CollectionOption {
	return func(c *Collection) { c.metrics = m }
}

// WithParallelFlush makes FlushAllCacheWrites flush caches concurrently,
// at most limit at a time. A negative limit means unbounded; zero keeps
// the sequential default.
func WithParallelFlush(limit int) CollectionOption {
	return func(c *Collection) { c.flushLimit = limit }
}

// Collection owns a set of uniquely named caches.
type Collection struct {
	name       string
	logger     log.Log
	metrics    *metrics.Collector
	flushLimit int

	mu     sync.RWMutex
	caches []*Cache
	index  map[uint64][]*Cache
}

func NewCollection(name string, opts ...CollectionOption) *Collection {
	c := &Collection{
		name:   name,
		logger: log.Nop(),
		index:  make(map[uint64][]*Cache),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) Name() string { return c.name }

// FindCache returns the cache called name, or nil.
func (c *Collection) FindCache(name string) *Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(name)
}

func (c *Collection) find(name string) *Cache {
	for _, cache := range c.index[xxhash.Sum64String(name)] {
		if cache.name == name {
			return cache
		}
	}
	return nil
}

// FindOrAddCache returns the cache called name, creating it if needed. An
// empty name gets a generated unique one.
func (c *Collection) FindOrAddCache(name string) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name != "" {
		if existing := c.find(name); existing != nil {
			return existing
		}
	} else {
		name = c.uniqueName()
	}

	cache := New(name, WithLogger(c.logger), WithMetrics(c.metrics))
	c.insert(cache)
	c.logger.Debug("cache added", log.String("collection", c.name), log.String("cache", name))
	return cache
}

func (c *Collection) uniqueName() string {
	for {
		name := fmt.Sprintf("Cache_%s", uuid.NewString())
		if c.find(name) == nil {
			return name
		}
	}
}

// AddCache adopts an existing cache, typically one loaded from disk.
func (c *Collection) AddCache(cache *Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.find(cache.name) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateCache, cache.name)
	}
	c.insert(cache)
	return nil
}

func (c *Collection) insert(cache *Cache) {
	h := xxhash.Sum64String(cache.name)
	c.index[h] = append(c.index[h], cache)
	c.caches = append(c.caches, cache)
}

// Caches returns the owned caches in insertion order.
func (c *Collection) Caches() []*Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Cache(nil), c.caches...)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.caches)
}

// FlushAllCacheWrites flushes every cache and returns the number of frames
// merged. Caches share no state, so they may be flushed concurrently.
func (c *Collection) FlushAllCacheWrites() int {
	caches := sequence.From(c.Caches())
	var total atomic.Int64
	flush := func(cache *Cache) error {
		total.Add(int64(cache.FlushPendingFrames()))
		return nil
	}

	switch {
	case c.flushLimit == 0:
		_ = concurrent.Sequential(caches, flush)
	case c.flushLimit < 0:
		_ = concurrent.Concurrent(caches, 0, flush)
	default:
		_ = concurrent.Concurrent(caches, c.flushLimit, flush)
	}
	return int(total.Load())
}
