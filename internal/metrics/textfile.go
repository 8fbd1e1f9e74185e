package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes the default registry to path in the text exposition
// format, for the node-exporter textfile collector. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
