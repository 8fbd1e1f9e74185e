package services

import (
	"context"

	"github.com/Belphemur/zipfetch/internal/models"
)

// ArchiveFetcher downloads a ZIP archive and expands it into a directory
type ArchiveFetcher interface {
	// FetchAndExtract runs one download, persist, extract and cleanup cycle.
	// The result is always non-nil and describes how far the run got.
	FetchAndExtract(ctx context.Context, req models.FetchRequest) (*models.FetchResult, error)

	// Close releases resources held by the fetcher (e.g., cache connections).
	Close() error
}
