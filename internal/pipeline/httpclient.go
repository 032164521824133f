package pipeline

import (
	"net/http"
	"time"
)

// NewPooledHTTPClient returns a client keeping up to poolSize idle
// connections per host. Response headers may take the whole timeout, since
// some backends answer only once the work is done.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = max(poolSize, 1)
	t.MaxIdleConnsPerHost = max(poolSize, 1)
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = timeout
	return &http.Client{Timeout: timeout, Transport: t}
}
