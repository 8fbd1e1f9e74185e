package testutil

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ZipFile is one entry of a fixture archive. Names ending in "/" are directories.
type ZipFile struct {
	Name    string
	Content string
}

// CreateZip builds an in-memory ZIP archive with the given entries in order.
// This is a test helper and should not be used in production code.
func CreateZip(t testing.TB, files ...ZipFile) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, file := range files {
		f, err := w.Create(file.Name)
		if err != nil {
			t.Fatalf("Failed to create file %s in ZIP: %v", file.Name, err)
		}
		if _, err := f.Write([]byte(file.Content)); err != nil {
			t.Fatalf("Failed to write content to %s in ZIP: %v", file.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close ZIP writer: %v", err)
	}
	return buf.Bytes()
}

// ArchiveServer serves a fixed body and status and counts the requests it receives.
type ArchiveServer struct {
	*httptest.Server
	hits atomic.Int64
}

// NewArchiveServer starts a server answering every request with status and body.
// The server is closed when the test ends.
func NewArchiveServer(t testing.TB, status int, body []byte) *ArchiveServer {
	t.Helper()

	s := &ArchiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Hits returns the number of requests served so far.
func (s *ArchiveServer) Hits() int64 {
	return s.hits.Load()
}
