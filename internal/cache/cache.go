// Package cache is the keyed store of server reads shared by every resource
// service. Reads are de-duplicated per key, served while fresh, and kept
// visible after invalidation until a refetch replaces them.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pft/internal/apperr"
	"pft/internal/log"
	"pft/internal/metrics"
)

// errSuperseded marks a fetch whose result was discarded by Cancel or Reset.
var errSuperseded = errors.New("fetch superseded")

// FetchStatus reports what the cache is doing for a key.
type FetchStatus int

const (
	StatusIdle FetchStatus = iota
	StatusFetching
	StatusFailed
)

func (s FetchStatus) String() string {
	switch s {
	case StatusFetching:
		return "fetching"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a point-in-time view of one entry.
type State struct {
	HasValue    bool
	UpdatedAt   time.Time
	Invalidated bool
	Status      FetchStatus
	Err         error
}

type Options struct {
	// MaxEntries bounds the number of entries; least recently used idle
	// entries are evicted first. Zero means unbounded.
	MaxEntries int
	// GCTime is how long an unused entry survives CleanExpired. Zero keeps
	// entries forever.
	GCTime  time.Duration
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry struct {
	key          Key
	value        any
	hasValue     bool
	updatedAt    time.Time
	usedAt       time.Time
	invalidated  bool
	invalidation uint64
	status       FetchStatus
	err          error
	gen          uint64
	cancel       context.CancelFunc
}

// Cache is safe for concurrent use. One instance per application.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	gen     uint64
	flights singleflight.Group

	maxEntries int
	gcTime     time.Duration
	now        func() time.Time
	logger     *log.Logger
	metrics    *metrics.Metrics
}

func New(opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: opts.MaxEntries,
		gcTime:     opts.GCTime,
		now:        now,
		logger:     log.OrNop(opts.Logger).WithComponent(log.ComponentCache),
		metrics:    opts.Metrics,
	}
}

// Read returns the cached value for key when it is younger than staleTime and
// not invalidated. Otherwise it runs fetch, sharing one call among concurrent
// readers of the same key, stores the result and returns it. A fetch error is
// returned without discarding the previous value.
func Read[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error), staleTime time.Duration) (T, error) {
	var zero T
	if v, ok := c.fresh(key, staleTime); ok {
		if t, ok := v.(T); ok {
			c.metrics.CacheRead(key.Resource(), true)
			return t, nil
		}
	}
	c.metrics.CacheRead(key.Resource(), false)

	v, err := c.load(ctx, key, func(ctx context.Context) (any, error) { return fetch(ctx) })
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("read %s: cached value is %T", key, v)
	}
	return t, nil
}

// Get returns the cached value for key regardless of staleness.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Update rewrites every entry under prefix whose value is a T. fn returns the
// replacement and whether it differs. The number of rewritten entries is
// returned.
func Update[T any](c *Cache, prefix Key, fn func(Key, T) (T, bool)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	now := c.now()
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.hasValue || !e.key.HasPrefix(prefix) {
			continue
		}
		cur, ok := e.value.(T)
		if !ok {
			continue
		}
		next, changed := fn(e.key, cur)
		if !changed {
			continue
		}
		e.value = next
		e.updatedAt = now
		e.invalidated = false
		n++
	}
	return n
}

// Peek returns the raw cached value for key regardless of staleness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key.String()]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	return e.value, e.hasValue
}

// Write stores value under key as fresh data without a server round trip.
func (c *Cache) Write(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.ensure(key)
	now := c.now()
	e.value = value
	e.hasValue = true
	e.updatedAt = now
	e.usedAt = now
	e.invalidated = false
	c.evict()
}

// Invalidate marks every entry under prefix stale. Values stay readable
// through Get until a refetch replaces them. It returns the number of entries
// marked.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		e.invalidation++
		n++
	}
	if n > 0 {
		c.logger.Debug("Invalidated entries", log.FieldKey, prefix.String(), "count", n)
	}
	return n
}

// Cancel aborts in-flight fetches under prefix. Their results are discarded,
// so a Write made after Cancel cannot be overwritten by them. Readers waiting
// on a discarded fetch receive the value cached at that point, if any.
func (c *Cache) Cancel(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.key.HasPrefix(prefix) || e.status != StatusFetching {
			continue
		}
		c.supersede(e)
		n++
	}
	if n > 0 {
		c.logger.Debug("Canceled fetches", log.FieldKey, prefix.String(), "count", n)
	}
	return n
}

// State reports the entry for key. The zero State means nothing is cached.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key.String()]
	if !ok {
		return State{}
	}
	e := el.Value.(*entry)
	return State{
		HasValue:    e.hasValue,
		UpdatedAt:   e.updatedAt,
		Invalidated: e.invalidated,
		Status:      e.status,
		Err:         e.err,
	}
}

// Keys lists the cached keys under prefix, most recently used first.
func (c *Cache) Keys(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for el := c.lru.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*entry); e.key.HasPrefix(prefix) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Reset drops every entry and discards all in-flight fetches.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.lru.Front(); el != nil; el = el.Next() {
		c.supersede(el.Value.(*entry))
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.logger.Debug("Cache reset")
}

// CleanExpired removes idle entries unused for longer than GCTime and
// returns how many were removed.
func (c *Cache) CleanExpired() int {
	if c.gcTime <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.gcTime)
	var expired []*list.Element
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.status != StatusFetching && e.usedAt.Before(cutoff) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		c.remove(el)
	}
	return len(expired)
}

func (c *Cache) fresh(key Key, staleTime time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key.String()]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	now := c.now()
	e.usedAt = now
	c.lru.MoveToFront(el)
	if !e.hasValue || e.invalidated || now.Sub(e.updatedAt) >= staleTime {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) load(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	op := "read " + key.String()

	c.mu.Lock()
	e := c.ensure(key)
	gen := e.gen
	// Fetching from registration on, so Cancel sees flights that have not
	// reached run yet.
	e.status = StatusFetching
	ch := c.flights.DoChan(flightKey(key, gen), func() (any, error) {
		return c.run(ctx, key, gen, fetch)
	})
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, &apperr.Error{Kind: apperr.KindCanceled, Op: op, Err: ctx.Err()}
	case res := <-ch:
		if res.Err == nil {
			return res.Val, nil
		}
		if errors.Is(res.Err, errSuperseded) {
			if v, ok := c.Peek(key); ok {
				return v, nil
			}
			return nil, &apperr.Error{Kind: apperr.KindCanceled, Op: op, Err: res.Err}
		}
		return nil, res.Err
	}
}

// run executes one fetch for key and stores its outcome unless the entry was
// superseded meanwhile.
func (c *Cache) run(ctx context.Context, key Key, gen uint64, fetch func(context.Context) (any, error)) (any, error) {
	// Detached: one reader giving up must not fail the others.
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	c.mu.Lock()
	e, ok := c.lookup(key)
	if !ok || e.gen != gen {
		c.mu.Unlock()
		return nil, errSuperseded
	}
	e.status = StatusFetching
	e.cancel = cancel
	invalidation := e.invalidation
	c.mu.Unlock()

	started := c.now()
	v, err := fetch(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok = c.lookup(key)
	if !ok || e.gen != gen {
		c.logger.Debug("Discarded superseded fetch", log.FieldKey, key.String())
		return nil, errSuperseded
	}
	e.cancel = nil
	c.metrics.CacheFetch(key.Resource(), err == nil)
	if err != nil {
		e.status = StatusFailed
		e.err = err
		c.logger.Warn("Fetch failed",
			log.FieldKey, key.String(),
			log.FieldError, err,
			log.FieldDuration, c.now().Sub(started).Milliseconds(),
		)
		return nil, err
	}

	now := c.now()
	e.value = v
	e.hasValue = true
	e.updatedAt = now
	e.usedAt = now
	// An invalidation that landed mid-flight keeps the new value stale.
	e.invalidated = e.invalidation != invalidation
	e.status = StatusIdle
	e.err = nil
	c.evict()
	return v, nil
}

// supersede is called with c.mu held.
func (c *Cache) supersede(e *entry) {
	c.gen++
	e.gen = c.gen
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.status == StatusFetching {
		e.status = StatusIdle
	}
}

// lookup is called with c.mu held.
func (c *Cache) lookup(key Key) (*entry, bool) {
	el, ok := c.items[key.String()]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry), true
}

// ensure is called with c.mu held.
func (c *Cache) ensure(key Key) *entry {
	id := key.String()
	if el, ok := c.items[id]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*entry)
	}
	c.gen++
	e := &entry{key: key, gen: c.gen, usedAt: c.now()}
	c.items[id] = c.lru.PushFront(e)
	return e
}

// evict is called with c.mu held.
func (c *Cache) evict() {
	if c.maxEntries <= 0 {
		return
	}
	for el := c.lru.Back(); el != nil && c.lru.Len() > c.maxEntries; {
		prev := el.Prev()
		if e := el.Value.(*entry); e.status != StatusFetching {
			c.remove(el)
		}
		el = prev
	}
}

// remove is called with c.mu held.
func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	c.supersede(e)
	delete(c.items, e.key.String())
	c.lru.Remove(el)
}

func flightKey(key Key, gen uint64) string {
	return fmt.Sprintf("%s@%d", key, gen)
}
