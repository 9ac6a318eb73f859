// Package cache provides the key-value capability backing the device
// cache and the rate limiter, plus the cache-aside device projection
// built on top of it.
package cache

import (
	"context"
	"time"
)

// Lookup is the three-state result of a read: a hit carries Value,
// a miss has Found=false, and a backend failure sets Err. Callers that
// only care about hit/miss collapse Err into a miss.
type Lookup struct {
	Value []byte
	Found bool
	Err   error
}

// Store is the minimal key-value capability the pipeline needs. Keys
// are namespaced by the implementation's configured prefix.
type Store interface {
	// Get reads a key. Backend failures are reported in Lookup.Err,
	// never panicked or conflated with a miss.
	Get(ctx context.Context, key string) Lookup

	// Set writes a value with the given TTL, overwriting any previous
	// value and expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update overwrites the value only if the key already exists,
	// preserving the remaining TTL. Returns false when the key is
	// absent.
	Update(ctx context.Context, key string, value []byte) (bool, error)

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically adds 1 to a numeric key and returns the new
	// value. When the key is created by this call it gets the given
	// TTL; an existing key keeps its expiry.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
