package discord

import (
	"net/http"
	"time"
)

// newHTTPClient returns the client used for REST calls. The transport keeps
// the stdlib proxy and dial settings and bounds the wait for headers so a
// stalled upstream fails within timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 8
	t.ResponseHeaderTimeout = timeout
	return &http.Client{Timeout: timeout, Transport: t}
}
