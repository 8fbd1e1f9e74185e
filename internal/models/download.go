package models

// DownloadInfo describes a completed HTTP download
type DownloadInfo struct {
	StatusCode    int    // HTTP status code of the response
	ContentType   string // Content-Type header, "application/octet-stream" when absent
	ContentLength int64  // Declared length, -1 when unknown or removed by decompression
	Written       int64  // Bytes written to the destination
}
