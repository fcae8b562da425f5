package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/awsretry"
)

// DefaultCacheCapacity bounds a TemplateCache built with capacity <= 0.
const DefaultCacheCapacity = 50

type cacheKey struct {
	table string
	key   string
}

type cacheEntry struct {
	fields   []string
	notFound bool
}

// TemplateCache memoizes template field lists per (table, key). It is safe
// for concurrent use; concurrent misses for one key share a single load.
// Not-found results are cached, other failures are not. When full, the
// oldest entry is evicted.
type TemplateCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]cacheEntry
	order    []cacheKey
	group    singleflight.Group
}

// NewTemplateCache creates an empty cache holding at most capacity entries.
func NewTemplateCache(capacity int) *TemplateCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &TemplateCache{
		capacity: capacity,
		entries:  make(map[cacheKey]cacheEntry, capacity),
	}
}

// Len returns the number of cached entries.
func (c *TemplateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Lookup returns the cached fields for (table, key), calling load on a miss.
// A cached not-found answers with domain.ErrTemplateNotFound.
func (c *TemplateCache) Lookup(ctx context.Context, table, key string, load func(ctx context.Context) ([]string, error)) ([]string, error) {
	k := cacheKey{table: table, key: key}
	if e, ok := c.get(k); ok {
		if e.notFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
		}
		return e.fields, nil
	}

	v, err, _ := c.group.Do(table+"\x00"+key, func() (any, error) {
		// A concurrent flight may have filled the entry while we waited.
		if e, ok := c.get(k); ok {
			if e.notFound {
				return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
			}
			return e.fields, nil
		}

		fields, err := load(ctx)
		switch {
		case err == nil:
			c.put(k, cacheEntry{fields: fields})
		case awsretry.IsNotFound(err):
			c.put(k, cacheEntry{notFound: true})
			if !errors.Is(err, domain.ErrTemplateNotFound) {
				err = fmt.Errorf("%w: %s: %w", domain.ErrTemplateNotFound, key, err)
			}
		}
		return fields, err
	})
	if err != nil {
		return nil, err
	}
	fields, _ := v.([]string)
	return fields, nil
}

func (c *TemplateCache) get(k cacheKey) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e, ok
}

func (c *TemplateCache) put(k cacheKey, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[k]; !ok {
		if len(c.entries) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, k)
	}
	c.entries[k] = e
}
