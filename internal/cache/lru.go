package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded least-recently-used map used for run-scoped memoization.
// It is safe for concurrent use.
type LRU[K comparable, V any] struct {
	items *lru.Cache[K, V]
}

// NewLRU creates a cache holding at most capacity entries. A non-positive
// capacity is raised to one.
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity < 1 {
		capacity = 1
	}

	items, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}

	return &LRU[K, V]{items: items}, nil
}

// Get retrieves an item from the cache
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.items.Get(key)
}

// Set adds or updates an item, evicting the oldest entry when full
func (c *LRU[K, V]) Set(key K, value V) {
	c.items.Add(key, value)
}

// Clear removes all items from the cache
func (c *LRU[K, V]) Clear() {
	c.items.Purge()
}

// Len returns the number of items in the cache
func (c *LRU[K, V]) Len() int {
	return c.items.Len()
}
