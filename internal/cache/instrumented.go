package cache

import (
	"context"
	"io"
)

// instrumentedCache counts hits, misses and stored bytes for one group label.
// Evictions are counted by the callback New chains in front of the provider.
type instrumentedCache struct {
	inner Cache
	group string
}

func newInstrumentedCache(inner Cache, group string) *instrumentedCache {
	registerEntriesCollector(group, inner.Len)
	return &instrumentedCache{inner: inner, group: group}
}

func (c *instrumentedCache) Open(ctx context.Context, key string) (io.ReadCloser, bool) {
	rc, ok := c.inner.Open(ctx, key)
	if ok {
		HitsTotal.WithLabelValues(c.group).Inc()
	} else {
		MissesTotal.WithLabelValues(c.group).Inc()
	}
	return rc, ok
}

func (c *instrumentedCache) Store(ctx context.Context, key string, r io.Reader) {
	counted := &countingReader{r: r}
	c.inner.Store(ctx, key, counted)
	StoredBytesTotal.WithLabelValues(c.group).Add(float64(counted.n))
}

func (c *instrumentedCache) Len() int {
	return c.inner.Len()
}

// Close unregisters the entries collector and closes the underlying cache.
func (c *instrumentedCache) Close() error {
	unregisterEntriesCollector(c.group)
	return c.inner.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
