package models

import (
	"io/fs"
	"time"
)

// FetchRequest names the archive to download and where to expand it
type FetchRequest struct {
	URL       string // Source of the ZIP archive
	TargetDir string // Directory the entries are extracted into
}

// FetchResult describes the outcome of one fetch-and-extract run
type FetchResult struct {
	Success         bool          // True when the archive was downloaded and fully extracted
	StatusCode      int           // HTTP status of the download (0 when served from cache or never sent)
	ExtractedFiles  int           // Number of regular files written
	ExtractedDirs   int           // Number of directories created from directory entries
	BytesDownloaded int64         // Size of the archive written to the temporary file
	BytesExtracted  int64         // Total uncompressed bytes written
	Files           []string      // Slash-separated paths relative to TargetDir, in archive order
	FromCache       bool          // True when the archive came from the cache instead of the network
	Duration        time.Duration // Wall time of the whole run
}

// ArchiveEntry is one verified entry of a ZIP archive
type ArchiveEntry struct {
	Name string      // Cleaned, slash-separated relative path
	Dir  bool        // Directory entry
	Size uint64      // Uncompressed size declared by the archive
	Mode fs.FileMode // Permission bits to apply on extraction
}
