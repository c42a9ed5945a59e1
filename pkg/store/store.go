// Package store persists the documentation session: provider credentials,
// generation metadata and the current document.
//
// A [Store] is a flat byte-oriented key-value store. Writes replace the
// whole value; there is no cross-process atomicity and the last writer
// wins. Backends:
//
//   - [MemoryStore]: process-local (tests, one-shot commands)
//   - [FileStore]: one file per key under ~/.config/docsmith/store (CLI default)
//   - [RedisStore]: shared by several preview instances
//   - [MongoStore]: a collection of {_id, value} documents
//
// [Documents] layers typed accessors for the well-known keys on top of any
// backend.
package store

import (
	"context"

	"github.com/matzehuels/docsmith/pkg/errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "key not found")

// Store is a key-value store. Implementations must be safe for concurrent
// use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend string

	// FileDir is the FileStore directory; empty means DefaultDir.
	FileDir string

	RedisAddr   string
	RedisPrefix string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// Open connects the backend named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case "", BackendFile:
		return NewFileStore(opts.FileDir)
	case BackendRedis:
		return DialRedis(ctx, opts.RedisAddr, opts.RedisPrefix)
	case BackendMongo:
		return DialMongo(ctx, opts.MongoURI, opts.MongoDatabase, opts.MongoCollection)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q (must be memory, file, redis or mongo)", opts.Backend)
	}
}
