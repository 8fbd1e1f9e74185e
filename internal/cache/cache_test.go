package cache

import (
	"context"
	"io"
	"strings"
	"testing"
)

func store(t *testing.T, c Cache, key, value string) {
	t.Helper()
	c.Store(context.Background(), key, strings.NewReader(value))
}

// read returns the archive stored under key and whether it was a hit.
func read(t *testing.T, c Cache, key string) (string, bool) {
	t.Helper()
	rc, ok := c.Open(context.Background(), key)
	if !ok {
		return "", false
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %s: %v", key, err)
	}
	return string(data), true
}
