package client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Belphemur/zipfetch/internal/config"
)

const defaultHeaderTimeout = 30 * time.Second

// NewHTTPClient creates the HTTP client used for archive downloads.
//
// The client has no overall Timeout: archives are streamed to disk and may take
// longer than any fixed budget. client_timeout bounds the wait for response
// headers instead, and callers cancel the body through the request context.
func NewHTTPClient(cfg *config.Config) *http.Client {
	logger := config.GetLogger()

	// Clone DefaultTransport to keep its dialer, pooling and HTTP/2 settings
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	baseTransport.ResponseHeaderTimeout = config.ParseDuration("client_timeout", cfg.ClientTimeout, defaultHeaderTimeout)

	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			baseTransport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Transport: newCompressionTransport(baseTransport),
	}
}
