package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Belphemur/zipfetch/internal/apperrors"
	"github.com/Belphemur/zipfetch/internal/archive"
	"github.com/Belphemur/zipfetch/internal/cache"
	"github.com/Belphemur/zipfetch/internal/client"
	"github.com/Belphemur/zipfetch/internal/config"
	"github.com/Belphemur/zipfetch/internal/metrics"
	"github.com/Belphemur/zipfetch/internal/models"
)

// tempPattern names the temporary archive; afero replaces the '*'.
const tempPattern = "zipfetch-*.zip"

// Options tune a DefaultArchiveFetcher
type Options struct {
	TempDir        string // where the temporary archive is written, "." when empty
	MaxArchiveSize int64  // download size cap in bytes, 0 = unlimited
	Limits         archive.Limits

	Cache              cache.Cache // nil disables archive caching
	MaxCacheEntryBytes int64       // archives larger than this are not cached, 0 = no cap
}

// DefaultArchiveFetcher implements ArchiveFetcher on top of a Downloader and an afero filesystem
type DefaultArchiveFetcher struct {
	downloader client.Downloader
	fs         afero.Fs
	opts       Options
}

// NewArchiveFetcher creates a fetcher writing through fsys
func NewArchiveFetcher(downloader client.Downloader, fsys afero.Fs, opts Options) ArchiveFetcher {
	if opts.TempDir == "" {
		opts.TempDir = "."
	}
	return &DefaultArchiveFetcher{
		downloader: downloader,
		fs:         fsys,
		opts:       opts,
	}
}

// NewArchiveFetcherFromConfig wires the HTTP client, the optional archive cache
// and the OS filesystem from cfg.
func NewArchiveFetcherFromConfig(cfg *config.Config) (ArchiveFetcher, error) {
	httpClient := client.NewHTTPClient(cfg)

	archiveCache, err := newArchiveCache(cfg)
	if err != nil {
		return nil, err
	}

	return NewArchiveFetcher(client.NewDownloader(httpClient, cfg.UserAgent), afero.NewOsFs(), Options{
		TempDir:        cfg.TempDir,
		MaxArchiveSize: cfg.MaxArchiveSize,
		Limits: archive.Limits{
			MaxEntries:       cfg.MaxEntries,
			MaxExtractedSize: cfg.MaxExtractedSize,
		},
		Cache:              archiveCache,
		MaxCacheEntryBytes: cfg.Cache.MaxEntryBytes,
	}), nil
}

// Close releases the archive cache.
func (f *DefaultArchiveFetcher) Close() error {
	if f.opts.Cache == nil {
		return nil
	}
	return f.opts.Cache.Close()
}

// FetchAndExtract downloads req.URL to a temporary file, verifies it as a ZIP
// archive and extracts it into req.TargetDir. A non-200 response performs no
// file operation at all. Once created, the temporary file is always removed.
func (f *DefaultArchiveFetcher) FetchAndExtract(ctx context.Context, req models.FetchRequest) (result *models.FetchResult, err error) {
	start := time.Now()
	logger := config.GetLogger().With().
		Str("run_id", uuid.NewString()).
		Str("url", req.URL).
		Str("target_dir", req.TargetDir).
		Logger()

	result = &models.FetchResult{}
	defer func() {
		result.Duration = time.Since(start)
		status := outcomeLabel(err)
		metrics.FetchesTotal.WithLabelValues(status).Inc()
		metrics.FetchDuration.WithLabelValues(status).Observe(result.Duration.Seconds())
	}()

	if err := validateRequest(req); err != nil {
		return result, err
	}

	logger.Info().Msg("Fetching archive")

	tempPath, err := f.persist(ctx, req.URL, result, logger)
	if tempPath != "" {
		defer f.removeTemp(tempPath, logger)
	}
	if err != nil {
		var statusErr *apperrors.ErrUnexpectedStatus
		if errors.As(err, &statusErr) {
			logger.Warn().Int("status", statusErr.StatusCode).Msg("Archive download failed")
			return result, err
		}
		return result, fmt.Errorf("failed to download archive: %w", err)
	}

	metrics.DownloadedBytesTotal.Add(float64(result.BytesDownloaded))
	logger.Info().
		Str("size", humanize.Bytes(uint64(result.BytesDownloaded))).
		Bool("fromCache", result.FromCache).
		Msg("Archive persisted")

	extraction, err := f.extract(ctx, tempPath, req.TargetDir, logger)
	if extraction != nil {
		result.Files = extraction.Files
		result.ExtractedFiles = len(extraction.Files)
		result.ExtractedDirs = extraction.Dirs
		result.BytesExtracted = extraction.Bytes
		metrics.ExtractedFilesTotal.Add(float64(len(extraction.Files)))
		metrics.ExtractedBytesTotal.Add(float64(extraction.Bytes))
	}
	if err != nil {
		return result, fmt.Errorf("failed to extract archive: %w", err)
	}

	result.Success = true
	logger.Info().
		Int("files", result.ExtractedFiles).
		Int("dirs", result.ExtractedDirs).
		Str("extracted", humanize.Bytes(uint64(result.BytesExtracted))).
		Dur("elapsed", time.Since(start)).
		Msg("Archive extracted")

	return result, nil
}

func validateRequest(req models.FetchRequest) error {
	if req.URL == "" {
		return &apperrors.ErrInvalidRequest{Field: "url"}
	}
	if req.TargetDir == "" {
		return &apperrors.ErrInvalidRequest{Field: "target directory"}
	}
	return nil
}

// persist writes the archive for url into a new temporary file and returns its
// path. The path is non-empty whenever a temporary file was created, even on error.
func (f *DefaultArchiveFetcher) persist(ctx context.Context, url string, result *models.FetchResult, logger zerolog.Logger) (string, error) {
	if f.opts.Cache != nil {
		if cached, ok := f.opts.Cache.Open(ctx, url); ok {
			defer cached.Close()
			tempPath, n, err := f.writeTemp(cached)
			result.FromCache = true
			result.BytesDownloaded = n
			logger.Debug().Int64("size", n).Msg("Archive served from cache")
			return tempPath, err
		}
	}

	var temp afero.File
	open := func() (io.Writer, error) {
		if err := f.fs.MkdirAll(f.opts.TempDir, 0o755); err != nil {
			return nil, err
		}
		file, err := afero.TempFile(f.fs, f.opts.TempDir, tempPattern)
		if err != nil {
			return nil, err
		}
		temp = file
		return file, nil
	}

	info, err := f.downloader.Download(ctx, url, open, f.opts.MaxArchiveSize)
	if info != nil {
		result.StatusCode = info.StatusCode
		result.BytesDownloaded = info.Written
	}

	tempPath := ""
	if temp != nil {
		tempPath = temp.Name()
		if closeErr := temp.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close temporary file: %w", closeErr)
		}
	}
	if err != nil {
		return tempPath, err
	}

	f.storeInCache(ctx, url, tempPath, info.Written, logger)
	return tempPath, nil
}

// writeTemp copies r into a new temporary file and returns its path and size.
func (f *DefaultArchiveFetcher) writeTemp(r io.Reader) (string, int64, error) {
	if err := f.fs.MkdirAll(f.opts.TempDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create temp directory: %w", err)
	}
	file, err := afero.TempFile(f.fs, f.opts.TempDir, tempPattern)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	n, copyErr := io.Copy(file, r)
	closeErr := file.Close()
	if copyErr != nil {
		return file.Name(), n, fmt.Errorf("failed to copy cached archive: %w", copyErr)
	}
	if closeErr != nil {
		return file.Name(), n, fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	return file.Name(), n, nil
}

func (f *DefaultArchiveFetcher) storeInCache(ctx context.Context, url, tempPath string, size int64, logger zerolog.Logger) {
	if f.opts.Cache == nil {
		return
	}
	if f.opts.MaxCacheEntryBytes > 0 && size > f.opts.MaxCacheEntryBytes {
		logger.Debug().
			Str("size", humanize.Bytes(uint64(size))).
			Str("max", humanize.Bytes(uint64(f.opts.MaxCacheEntryBytes))).
			Msg("Archive too large to cache")
		return
	}

	file, err := f.fs.Open(tempPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open archive for caching")
		return
	}
	defer file.Close()

	f.opts.Cache.Store(ctx, url, file)
	logger.Debug().Str("size", humanize.Bytes(uint64(size))).Msg("Cached archive")
}

func (f *DefaultArchiveFetcher) extract(ctx context.Context, tempPath, targetDir string, logger zerolog.Logger) (*archive.Extraction, error) {
	arc, err := archive.OpenFile(f.fs, tempPath)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	entries, err := arc.Verify(f.opts.Limits)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("entries", len(entries)).Msg("Archive verified")

	return arc.ExtractAll(ctx, f.fs, targetDir)
}

func (f *DefaultArchiveFetcher) removeTemp(path string, logger zerolog.Logger) {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error().Err(err).Str("temp_file", path).Msg("Failed to remove temporary file")
		return
	}
	logger.Debug().Str("temp_file", path).Msg("Removed temporary file")
}

// outcomeLabel maps a run error to its zipfetch_fetches_total label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, &apperrors.ErrUnexpectedStatus{}):
		return metrics.StatusHTTPError
	case errors.Is(err, &apperrors.ErrInvalidArchive{}), errors.Is(err, &apperrors.ErrUnsafeEntryPath{}):
		return metrics.StatusInvalid
	case errors.Is(err, &apperrors.ErrLimitExceeded{}):
		return metrics.StatusLimitExceeded
	default:
		return metrics.StatusError
	}
}
