package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/maypok86/otter/v2"
)

// Cache is the TTL response cache for upstream catalog and EPG payloads.
// Entries are raw JSON or XML bodies keyed by a digest of the credentials
// and request parameters, so two users pointing at the same provider share
// cached responses without ever seeing each other's keys.
type Cache struct {
	store *otter.Cache[string, []byte]
	ttl   time.Duration
}

// New creates a cache holding up to maxEntries values that expire ttl after
// being written.
func New(maxEntries int, ttl time.Duration) *Cache {
	store := otter.Must(&otter.Options[string, []byte]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
	})
	return &Cache{
		store: store,
		ttl:   ttl,
	}
}

// Key builds a stable cache key from its parts. Credentials are hashed so
// raw passwords never sit in cache keys or debug output.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.store.GetIfPresent(key)
}

// Set stores payload under key with the cache-wide TTL.
func (c *Cache) Set(key string, payload []byte) {
	c.store.Set(key, payload)
}

// Invalidate drops a single entry.
func (c *Cache) Invalidate(key string) {
	c.store.Invalidate(key)
}

// InvalidateAll drops every entry. Called when a user switches profiles so
// stale catalogs from the previous provider cannot leak into the new view.
func (c *Cache) InvalidateAll() {
	c.store.InvalidateAll()
}

// TTL reports the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
