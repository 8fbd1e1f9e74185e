package cache

import (
	"context"
	"io"
)

// EvictCallback is called when an archive leaves the cache. The disk provider
// reports the entry's file name because source URLs are not kept on disk.
type EvictCallback func(key string)

// Logger receives errors that a cache cannot return to its caller.
type Logger interface {
	Error(msg string, err error)
}

// Cache stores downloaded archives keyed by their source URL.
// Lookups never fail loudly: a backend error is logged and reported as a miss.
type Cache interface {
	// Open returns a reader over the archive stored under key, or false on a
	// miss. The caller must close the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, bool)

	// Store copies r into the cache under key, replacing any previous archive.
	Store(ctx context.Context, key string, r io.Reader)

	// Len returns the number of cached archives.
	Len() int

	// Close releases resources held by the backend.
	Close() error
}
