package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcome labels
const (
	StatusSuccess       = "success"
	StatusHTTPError     = "http_error"
	StatusInvalid       = "invalid_archive"
	StatusLimitExceeded = "limit_exceeded"
	StatusError         = "error"
)

var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipfetch_fetches_total",
			Help: "Total number of fetch-and-extract runs by outcome.",
		},
		[]string{"status"},
	)

	DownloadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zipfetch_downloaded_bytes_total",
			Help: "Total number of archive bytes written to temporary files.",
		},
	)

	ExtractedFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zipfetch_extracted_files_total",
			Help: "Total number of files extracted from archives.",
		},
	)

	ExtractedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zipfetch_extracted_bytes_total",
			Help: "Total number of uncompressed bytes extracted from archives.",
		},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zipfetch_fetch_duration_seconds",
			Help:    "Duration of fetch-and-extract runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		FetchesTotal,
		DownloadedBytesTotal,
		ExtractedFilesTotal,
		ExtractedBytesTotal,
		FetchDuration,
	)
}
