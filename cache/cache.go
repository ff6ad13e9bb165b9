// Package cache implements the per device sector cache.
//
// The cache holds a fixed number of sector buffers keyed by sector number.
// Every insert and hit stamps the entry with the next value of a logical
// clock; when the cache is full the entry with the smallest stamp is evicted.
package cache

// DefaultCapacity is the number of sectors a device caches.
const DefaultCapacity = 32

type entry struct {
	tag   uint64
	stamp uint64
	data  []byte
}

// Cache is a least recently used sector cache.
// It is not safe for concurrent use.
type Cache struct {
	entries  []entry
	capacity int
	clock    uint64
}

// New creates an empty cache holding up to capacity sectors.
// A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make([]entry, 0, capacity),
		capacity: capacity,
	}
}

func (c *Cache) tick() uint64 {
	c.clock++
	return c.clock
}

// Lookup returns the buffer cached for tag.
// The buffer is owned by the cache and must not be modified.
func (c *Cache) Lookup(tag uint64) ([]byte, bool) {
	for i := range c.entries {
		if c.entries[i].tag == tag {
			c.entries[i].stamp = c.tick()
			return c.entries[i].data, true
		}
	}
	return nil, false
}

// Insert stores a copy of data under tag, evicting the least recently used
// entry if the cache is full.
func (c *Cache) Insert(tag uint64, data []byte) {
	e := entry{
		tag:   tag,
		stamp: c.tick(),
		data:  append([]byte(nil), data...),
	}

	if len(c.entries) < c.capacity {
		c.entries = append(c.entries, e)
		return
	}

	victim := 0
	for i := range c.entries {
		if c.entries[i].stamp < c.entries[victim].stamp {
			victim = i
		}
	}
	c.entries[victim] = e
}

// Len returns the number of cached sectors.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Capacity returns the maximum number of cached sectors.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Contains reports whether tag is cached without touching its stamp.
func (c *Cache) Contains(tag uint64) bool {
	for i := range c.entries {
		if c.entries[i].tag == tag {
			return true
		}
	}
	return false
}
