package rom

import (
	"errors"
	"fmt"
	"sync"
)

var errNotFound = errors.New("cache entry not found")

// cache is a concurrent memo of values, or the error that prevented
// computing them. The first value stored for a key wins.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value for k, or errNotFound.
func (c *cache[K, V]) Get(k K) (V, error) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	if e, ok := ent.(*cacheEntry[V]); ok {
		return e.val, e.err
	}
	panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
}

// Set stores val for k, and returns the value now cached for k. If a
// concurrent caller stored a value first, Set returns that value
// instead of val.
func (c *cache[K, V]) Set(k K, val V) V {
	ent, _ := c.m.LoadOrStore(k, &cacheEntry[V]{val: val})
	e := ent.(*cacheEntry[V])
	if e.err != nil {
		return val
	}
	return e.val
}

// SetErr caches err as the result for k, and returns it.
func (c *cache[K, V]) SetErr(k K, err error) error {
	c.m.LoadOrStore(k, &cacheEntry[V]{err: err})
	return err
}

// Clear removes all entries from the cache.
func (c *cache[K, V]) Clear() {
	c.m.Clear()
}
