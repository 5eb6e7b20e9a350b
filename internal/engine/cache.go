package engine

// Cache memoises one native handle behind a factory.
//
// Get invokes the factory at most once per successful construction and
// returns the stored value afterwards. A failing factory leaves the cache
// empty, so the next Get retries; failures are never cached.
//
// Cache is not safe for concurrent use. A Root drives all caches from one
// goroutine.
type Cache[T any] struct {
	name        string
	factory     func() (T, error)
	value       T
	built       bool
	failures    int
	consecutive int
}

// NewCache creates an empty cache. name appears in construction errors.
func NewCache[T any](name string, factory func() (T, error)) *Cache[T] {
	return &Cache[T]{name: name, factory: factory}
}

// Get returns the cached value, constructing it on first use. Factory
// errors are wrapped in a CONSTRUCTION_FAILED RuntimeError.
func (c *Cache[T]) Get() (T, error) {
	if c.built {
		return c.value, nil
	}
	v, err := c.factory()
	if err != nil {
		c.failures++
		c.consecutive++
		var zero T
		return zero, NewConstructionError(c.name, c.consecutive, err)
	}
	c.value = v
	c.built = true
	c.consecutive = 0
	return v, nil
}

// Peek returns the cached value without constructing it.
func (c *Cache[T]) Peek() (T, bool) {
	return c.value, c.built
}

// Reset forgets the cached value. The next Get constructs a new one.
func (c *Cache[T]) Reset() {
	var zero T
	c.value = zero
	c.built = false
}

// Failures returns the total number of failed constructions.
func (c *Cache[T]) Failures() int {
	return c.failures
}

// ConsecutiveFailures returns the failures since the last success.
func (c *Cache[T]) ConsecutiveFailures() int {
	return c.consecutive
}
