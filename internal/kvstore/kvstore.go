// Package kvstore defines the TTL-aware key-value contract shared by the job
// store and the cache, plus its backends.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// Store is a byte-oriented key-value store with per-entry expiry.
// Implementations must treat an expired entry exactly like a missing one.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

//go:generate go tool mockgen -source=kvstore.go -destination=mock_store.go -package=kvstore

// expiryFor converts a ttl to an absolute deadline; the zero time means never.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(now, expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
