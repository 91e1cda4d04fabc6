package datasource

// EvictionPolicy decides which cached entry to drop when the cache exceeds its
// bound. The policy sees every insert and access so a recency-based
// implementation can be swapped in without touching the cache itself.
type EvictionPolicy interface {
	// Inserted records that key was added to the cache.
	Inserted(key string)
	// Accessed records a cache hit on key.
	Accessed(key string)
	// Victim returns the next key to evict, or false if the policy tracks nothing.
	Victim() (string, bool)
	// Removed records that key left the cache (eviction or clear).
	Removed(key string)
	// Reset drops all tracked state.
	Reset()
}

// fifoPolicy evicts the oldest-inserted entry first. This is a deliberate
// FIFO approximation of LRU: accesses do not refresh an entry's position.
type fifoPolicy struct {
	order []string
}

// NewFIFOPolicy returns the default insertion-order eviction policy.
func NewFIFOPolicy() EvictionPolicy {
	return &fifoPolicy{order: nil}
}

func (p *fifoPolicy) Inserted(key string) {
	p.order = append(p.order, key)
}

// Accessed is a no-op: FIFO ignores recency.
func (p *fifoPolicy) Accessed(string) {}

func (p *fifoPolicy) Victim() (string, bool) {
	if len(p.order) == 0 {
		return "", false
	}

	return p.order[0], true
}

func (p *fifoPolicy) Removed(key string) {
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)

			return
		}
	}
}

func (p *fifoPolicy) Reset() {
	p.order = nil
}

// Cache is a bounded keyed result cache for data-manager queries.
type Cache struct {
	maxEntries int
	entries    map[string]any
	policy     EvictionPolicy
}

// NewCache creates a cache bounded to maxEntries, evicting per policy when the
// bound is exceeded. A maxEntries of zero or below disables caching.
func NewCache(maxEntries int, policy EvictionPolicy) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]any),
		policy:     policy,
	}
}

// Get returns the cached value for key, if present.
func (c *Cache) Get(key string) (any, bool) {
	value, ok := c.entries[key]
	if ok {
		c.policy.Accessed(key)
	}

	return value, ok
}

// Set stores value under key, evicting per policy if the bound is exceeded.
func (c *Cache) Set(key string, value any) {
	if c.maxEntries <= 0 {
		return
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value

		return
	}

	c.entries[key] = value
	c.policy.Inserted(key)

	for len(c.entries) > c.maxEntries {
		victim, ok := c.policy.Victim()
		if !ok {
			return
		}

		delete(c.entries, victim)
		c.policy.Removed(victim)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.entries = make(map[string]any)
	c.policy.Reset()
}
