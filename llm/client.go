package llm

import (
	"net"
	"net/http"
	"time"
)

// newBackendClient builds the per-backend HTTP client: a short dial
// timeout so an unreachable backend fails fast, a long overall timeout so
// slow generations are not cut off mid-stream, and a small keep-alive
// connection pool per backend host.
func newBackendClient(connectTimeout, readTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 300 * time.Second
	}
	return &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
