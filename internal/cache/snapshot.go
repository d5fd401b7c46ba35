package cache

import "time"

// Snapshot is a copy of every cached value under a prefix, taken before an
// optimistic write so it can be put back verbatim.
type Snapshot struct {
	prefix Key
	items  map[string]snapshotItem
}

type snapshotItem struct {
	key         Key
	value       any
	updatedAt   time.Time
	invalidated bool
}

// Prefix returns the prefix the snapshot covers.
func (s Snapshot) Prefix() Key { return s.prefix }

// Len is the number of values captured.
func (s Snapshot) Len() int { return len(s.items) }

// Snapshot captures the values under prefix. Values are held by reference, so
// callers must replace cached values rather than mutate them in place.
func (c *Cache) Snapshot(prefix Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{prefix: prefix, items: make(map[string]snapshotItem)}
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.hasValue || !e.key.HasPrefix(prefix) {
			continue
		}
		s.items[e.key.String()] = snapshotItem{
			key:         e.key,
			value:       e.value,
			updatedAt:   e.updatedAt,
			invalidated: e.invalidated,
		}
	}
	return s
}

// Restore puts the cache under the snapshot's prefix back to the captured
// values. Values written under the prefix after the snapshot are dropped.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.key.HasPrefix(s.prefix) {
			continue
		}
		if _, ok := s.items[e.key.String()]; ok {
			continue
		}
		e.value = nil
		e.hasValue = false
		e.invalidated = false
	}
	for _, it := range s.items {
		e := c.ensure(it.key)
		e.value = it.value
		e.hasValue = true
		e.updatedAt = it.updatedAt
		e.invalidated = it.invalidated
	}
	c.evict()
}
