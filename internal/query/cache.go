package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bagbrowser/bagbrowser/internal/logctx"
)

// DefaultCacheSize is the number of results kept when no size is configured.
const DefaultCacheSize = 128

// ModTimer reports the last-modified time of the backing store.
type ModTimer interface {
	ModTime() (time.Time, error)
}

// Executor computes a result for a context.
type Executor interface {
	Execute(ctx context.Context, qc QueryContext) (*Result, error)
}

// Cache memoizes query results keyed by the full QueryContext. The whole
// table is purged whenever the store file's modification time changes, so a
// cached entry is only ever served for the store version it was computed
// against (to within the filesystem's timestamp granularity).
type Cache struct {
	store ModTimer
	exec  Executor

	mu         sync.Mutex
	entries    *lru.Cache[QueryContext, *Result]
	lastMod    time.Time
	primed     bool
	generation uint64
}

// NewCache wraps exec with a result cache holding up to size entries.
func NewCache(size int, store ModTimer, exec Executor) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[QueryContext, *Result](size)
	if err != nil {
		return nil, fmt.Errorf("query: create cache: %w", err)
	}
	return &Cache{store: store, exec: exec, entries: entries}, nil
}

// Query returns the cached result for qc or computes and caches it. Failed
// computations are never cached and never fall back to a stale entry.
func (c *Cache) Query(ctx context.Context, qc QueryContext) (*Result, error) {
	qc = qc.withDefaults()
	if err := qc.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if err := c.checkStoreLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if r, ok := c.entries.Get(qc); ok {
		c.mu.Unlock()
		cacheHitsTotal.Inc()
		return r, nil
	}
	gen := c.generation
	c.mu.Unlock()

	cacheMissesTotal.Inc()
	r, err := c.exec.Execute(ctx, qc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// A purge while computing means r may describe an older store version.
	if c.generation == gen {
		c.entries.Add(qc, r)
	}
	c.mu.Unlock()
	return r, nil
}

// Invalidate drops every cached result.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.purgeLocked()
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) checkStoreLocked(ctx context.Context) error {
	mod, err := c.store.ModTime()
	if err != nil {
		return err
	}
	if c.primed && mod.Equal(c.lastMod) {
		return nil
	}
	if c.primed {
		log := logctx.FromContext(ctx)
		log.Debug().
			Time("previous", c.lastMod).
			Time("current", mod).
			Msg("store changed, purging query cache")
	}
	c.purgeLocked()
	c.lastMod = mod
	c.primed = true
	return nil
}

func (c *Cache) purgeLocked() {
	c.entries.Purge()
	c.generation++
	cachePurgesTotal.Inc()
}
