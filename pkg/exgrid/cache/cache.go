// Package cache provides the process-wide read cache for sheet pages.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
)

const keySep = "::"

// Key identifies one cached read.
type Key struct {
	Path          string
	Sheet         string
	Page          int
	PageSize      int
	Filter        string
	ColumnFilters map[string]string
	Sort          string
}

// String renders the key; every key of a file starts with "<path>::".
func (k Key) String() string {
	cols := make([]string, 0, len(k.ColumnFilters))
	for name, v := range k.ColumnFilters {
		cols = append(cols, name+"="+v)
	}
	sort.Strings(cols)
	return strings.Join([]string{
		k.Path,
		k.Sheet,
		fmt.Sprint(k.Page),
		fmt.Sprint(k.PageSize),
		k.Filter,
		strings.Join(cols, "&"),
		k.Sort,
	}, keySep)
}

type entry[V any] struct {
	value   V
	stored  time.Time
	modTime time.Time
}

// Cache is a TTL cache whose values are copied in and out, so callers can
// never mutate a stored entry. It is safe for concurrent use.
type Cache[V any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]entry[V]
	now       func() time.Time
	listeners []func(path string)
}

// New returns a cache with the given entry lifetime.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a copy of the entry for key. Entries older than the TTL, or
// recorded for a different file modification time, are dropped.
func (c *Cache[V]) Get(key Key, modTime time.Time) (V, bool) {
	var zero V
	k := key.String()

	c.mu.Lock()
	e, ok := c.entries[k]
	if ok && (c.now().Sub(e.stored) >= c.ttl || !e.modTime.Equal(modTime)) {
		delete(c.entries, k)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return zero, false
	}
	var out V
	if err := deepcopy.Copy(&out, e.value); err != nil {
		return zero, false
	}
	return out, true
}

// Set stores a copy of v.
func (c *Cache[V]) Set(key Key, v V, modTime time.Time) error {
	var stored V
	if err := deepcopy.Copy(&stored, v); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = entry[V]{value: stored, stored: c.now(), modTime: modTime}
	return nil
}

// Invalidate removes every entry of path and notifies subscribers.
// It returns the number of entries removed.
func (c *Cache[V]) Invalidate(path string) int {
	prefix := path + keySep

	c.mu.Lock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	listeners := append([]func(string){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(path)
	}
	return n
}

// OnInvalidate registers fn to be called after every Invalidate.
func (c *Cache[V]) OnInvalidate(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
