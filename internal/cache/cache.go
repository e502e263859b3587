package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spboyer/aemforge/internal/kvstore"
)

// DefaultPrefix namespaces cache entries inside a shared store.
const DefaultPrefix = "aem_gen:"

// entry is the stored form of a cached value. The backing store enforces
// the TTL as well; ExpiresAt guards stores that keep entries longer.
type entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"`
}

// Cache memoizes expensive stage outputs in a kvstore.Store.
// It is purely an optimization: every store or encoding failure is logged
// and treated as a miss. A nil *Cache never hits.
type Cache struct {
	store  kvstore.Store
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache writing under prefix (DefaultPrefix when empty).
func New(store kvstore.Store, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{store: store, prefix: prefix}
}

// Key derives a cache key from a namespace and the request-derived parts.
// Identical parts always produce the same key.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		// errors from hash.Hash writes are impossible
		_ = writeString(h, p)
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get decodes the cached value for key into dst and reports whether it hit.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.store == nil {
		return false
	}

	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			slog.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		}
		c.misses.Add(1)
		return false
	}

	var e entry
	err = json.Unmarshal(data, &e)
	if err == nil {
		err = json.Unmarshal(e.Value, dst)
	}
	if err != nil {
		// Invalid cache entry, treat as miss
		slog.Warn("Cache entry could not be decoded, treating as miss", "key", key, "error", err)
		c.misses.Add(1)
		return false
	}
	if !e.ExpiresAt.IsZero() && !time.Now().Before(e.ExpiresAt) {
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	return true
}

// Put stores value under key for ttl. Failures are logged, never returned.
func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Cache value could not be encoded", "key", key, "error", err)
		return
	}
	e := entry{Value: raw}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Cache value could not be encoded", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, data, ttl); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Clear removes every entry under the cache prefix when the store supports it.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}
	pd, ok := c.store.(kvstore.PrefixDeleter)
	if !ok {
		return 0, fmt.Errorf("store %T cannot clear by prefix", c.store)
	}
	return pd.DeletePrefix(ctx, c.prefix)
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Memoize returns the cached value for key, or runs compute and caches its
// result. Errors from compute are returned and nothing is cached.
func Memoize[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		slog.Debug("Cache hit", "key", key)
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}
	c.Put(ctx, key, value, ttl)
	return value, nil
}

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}
