package rating

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cached keeps recent records in an expiring LRU and collapses concurrent lookups of the same query.
// Misses and errors are never cached.
type Cached struct {
	next  Provider
	cache *expirable.LRU[string, *Record]
	group singleflight.Group
}

func NewCached(next Provider, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, *Record](size, nil, ttl),
	}
}

func (c *Cached) Name() string {
	return c.next.Name()
}

func (c *Cached) Lookup(ctx context.Context, q Query) (*Record, error) {
	key := q.key()
	if rec, ok := c.cache.Get(key); ok {
		return rec.Clone(), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		rec, err := c.next.Lookup(ctx, q)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Record).Clone(), nil
}

// Forget drops the cached record so the next lookup goes to the source.
func (c *Cached) Forget(q Query) {
	c.cache.Remove(q.key())
}

func (c *Cached) Close() error {
	if closer, ok := c.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
