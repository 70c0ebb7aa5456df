package rest

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport builds the HTTP transport backing every REST client.
// ARI traffic concentrates on one Asterisk host, so connections are
// pooled and capped there rather than spread thin.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		// A stalled Asterisk must not accumulate unbounded sockets.
		MaxConnsPerHost: 100,

		// Idle connections stay open for quick successive API calls.
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
