package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Belphemur/zipfetch/internal/apperrors"
	"github.com/Belphemur/zipfetch/internal/config"
	"github.com/Belphemur/zipfetch/internal/models"
)

// OpenFunc creates the download destination. It is only called once the
// response status is known to be successful.
type OpenFunc func() (io.Writer, error)

// Downloader streams a remote resource into a writer
type Downloader interface {
	// Download issues a single GET for url and copies the body into the writer
	// returned by open. limit caps the body size in bytes, 0 means unlimited.
	Download(ctx context.Context, url string, open OpenFunc, limit int64) (*models.DownloadInfo, error)
}

type httpDownloader struct {
	httpClient *http.Client
	userAgent  string
}

// NewDownloader creates a Downloader on top of httpClient
func NewDownloader(httpClient *http.Client, userAgent string) Downloader {
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &httpDownloader{httpClient: httpClient, userAgent: userAgent}
}

func (d *httpDownloader) Download(ctx context.Context, url string, open OpenFunc, limit int64) (*models.DownloadInfo, error) {
	logger := config.GetLogger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	info := &models.DownloadInfo{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}

	logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Str("contentType", info.ContentType).
		Int64("contentLength", resp.ContentLength).
		Msg("Received archive response")

	if resp.StatusCode != http.StatusOK {
		return info, apperrors.NewUnexpectedStatusError(url, resp.StatusCode)
	}

	if limit > 0 && resp.ContentLength > limit {
		return info, &apperrors.ErrLimitExceeded{Limit: "archive size", Max: limit, Actual: resp.ContentLength}
	}

	w, err := open()
	if err != nil {
		return info, fmt.Errorf("failed to open download destination: %w", err)
	}

	body := io.Reader(resp.Body)
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	info.Written, err = io.Copy(w, body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return info, fmt.Errorf("failed to read response body: %w", err)
	}
	if limit > 0 && info.Written > limit {
		return info, &apperrors.ErrLimitExceeded{Limit: "archive size", Max: limit}
	}

	return info, nil
}
