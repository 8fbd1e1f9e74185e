package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getCounterVecValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_FetchesTotal(t *testing.T) {
	for _, status := range []string{StatusSuccess, StatusHTTPError, StatusInvalid, StatusLimitExceeded, StatusError} {
		before := getCounterVecValue(FetchesTotal, status)
		FetchesTotal.WithLabelValues(status).Inc()
		after := getCounterVecValue(FetchesTotal, status)

		if after != before+1 {
			t.Errorf("Expected %s counter to increment by 1, got diff %.0f", status, after-before)
		}
	}
}

func TestMetrics_ByteCounters(t *testing.T) {
	for name, c := range map[string]prometheus.Counter{
		"downloaded": DownloadedBytesTotal,
		"extracted":  ExtractedBytesTotal,
		"files":      ExtractedFilesTotal,
	} {
		before := getCounterValue(c)
		c.Add(42)
		after := getCounterValue(c)

		if after != before+42 {
			t.Errorf("Expected %s counter to grow by 42, got diff %.0f", name, after-before)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	FetchesTotal.WithLabelValues(StatusSuccess).Inc()
	path := filepath.Join(t.TempDir(), "zipfetch.prom")

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `zipfetch_fetches_total{status="success"}`) {
		t.Errorf("Expected fetch counter in textfile, got:\n%s", data)
	}
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("Expected no-op for empty path, got %v", err)
	}
}
