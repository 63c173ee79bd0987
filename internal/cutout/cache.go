package cutout

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"strconv"
	"sync"
)

// Cache is a concurrency-safe store of finished cutouts keyed by the sticker
// bytes and options. Cached images are shared and must be treated as
// read-only. The oldest entry is evicted once the cache is full.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*image.NRGBA
	order []string
	limit int
}

// NewCache creates a cache holding at most limit entries (minimum 1).
func NewCache(limit int) *Cache {
	if limit < 1 {
		limit = 1
	}
	return &Cache{
		items: make(map[string]*image.NRGBA),
		limit: limit,
	}
}

// Key identifies a cutout by the sha256 of its input and its options.
func Key(sticker []byte, opts Options) string {
	h := sha256.New()
	h.Write(sticker)
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(opts.StrokePx)))
	if opts.Shadow {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Resolve returns the cached cutout for key or builds it with load.
// Load errors are returned and not cached.
func (c *Cache) Resolve(key string, load func() (*image.NRGBA, error)) (*image.NRGBA, error) {
	// Fast path: read lock
	c.mu.RLock()
	if img, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	// Slow path: build outside the lock
	img, err := load()
	if err != nil {
		return nil, err
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.items[key]; ok {
		return existing, nil
	}
	if len(c.order) >= c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.items[key] = img
	c.order = append(c.order, key)
	return img, nil
}

// Len returns the number of cached cutouts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
