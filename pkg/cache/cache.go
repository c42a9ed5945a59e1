// Package cache stores rendered diagram artifacts keyed by a hash of their
// source.
//
// Rendering goes through a WebAssembly Graphviz instance and rasterization
// may shell out to rsvg-convert, so both are worth caching across runs.
// Backends:
//
//   - [FileCache]: JSON entries under ~/.cache/docsmith (CLI default)
//   - [MemoryCache]: process-local map (preview server, tests)
//   - [RedisCache]: shared cache for several preview instances
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer] so callers never build key strings by hand:
//
//	key := keyer.DiagramKey(engine.Name(), source)
//	if data, hit, _ := c.Get(ctx, key); hit {
//	    return data, nil
//	}
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache with per-entry TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the data for key. A miss or an expired entry is
	// reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLs for cached artifacts. Rendered output is a pure function of the
// source, so entries only expire to bound disk usage.
const (
	TTLDiagram = 7 * 24 * time.Hour
	TTLRaster  = 7 * 24 * time.Hour
)
