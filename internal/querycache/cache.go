// Package querycache is a content-addressed cache of read results keyed by
// (domain, serialized filter) with explicit per-domain invalidation.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives cache events, typically to feed metrics.
type Observer interface {
	Hit(d Domain)
	Miss(d Domain)
	Invalidated(d Domain, entries int)
}

type entry struct {
	data      any
	fetchedAt time.Time
}

type Cache struct {
	mu          sync.Mutex
	entries     map[Domain]map[string]entry
	generations map[Domain]uint64
	ttl         time.Duration
	now         func() time.Time
	group        singleflight.Group
	observer     Observer
	fetchTimeout time.Duration
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithFetchTimeout bounds a shared fetch, which no longer follows the
// cancellation of the caller that started it.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// New returns a cache whose entries are served for ttl after being fetched.
// A ttl <= 0 disables caching; every Load fetches.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[Domain]map[string]entry),
		generations: make(map[Domain]uint64),
		ttl:          ttl,
		now:          time.Now,
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached value for (d, key) if it is fresh, otherwise calls
// fetch. Concurrent loads of the same key and domain generation share one
// fetch, so a load that starts after an invalidation never joins a fetch that
// started before it. A result whose domain was invalidated while the fetch was
// running is returned to the caller but not stored. The shared fetch runs
// detached from any one caller's cancellation; a caller whose ctx ends stops
// waiting and gets ctx.Err() while the others keep theirs.
func (c *Cache) Load(ctx context.Context, d Domain, key string, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[d][key]; ok && c.fresh(e) {
		c.mu.Unlock()
		c.hit(d)
		return e.data, nil
	}
	gen := c.generations[d]
	c.mu.Unlock()
	c.miss(d)

	flight := string(d) + "\x00" + strconv.FormatUint(gen, 10) + "\x00" + key
	ch := c.group.DoChan(flight, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		data, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ttl > 0 && c.generations[d] == gen {
			if c.entries[d] == nil {
				c.entries[d] = make(map[string]entry)
			}
			c.entries[d][key] = entry{data: data, fetchedAt: c.now()}
		}
		return data, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FetchedAt reports when the cached value for (d, key) was fetched.
func (c *Cache) FetchedAt(d Domain, key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[d][key]
	return e.fetchedAt, ok
}

// Invalidate drops every entry of the given domains.
func (c *Cache) Invalidate(domains ...Domain) {
	c.mu.Lock()
	counts := make(map[Domain]int, len(domains))
	for _, d := range domains {
		counts[d] = len(c.entries[d])
		delete(c.entries, d)
		c.generations[d]++
	}
	c.mu.Unlock()

	if c.observer != nil {
		for _, d := range domains {
			c.observer.Invalidated(d, counts[d])
		}
	}
}

// Len returns the number of cached entries in d.
func (c *Cache) Len(d Domain) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries[d])
}

func (c *Cache) fresh(e entry) bool {
	return c.ttl > 0 && c.now().Sub(e.fetchedAt) < c.ttl
}

func (c *Cache) hit(d Domain) {
	if c.observer != nil {
		c.observer.Hit(d)
	}
}

func (c *Cache) miss(d Domain) {
	if c.observer != nil {
		c.observer.Miss(d)
	}
}
