package chaser

import (
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient makes the Client send requests through hc, for proxies or
// custom TLS. Its Timeout is replaced by the client timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each license request, connect to body. Default 10s.
// Non-positive values disable the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d < 0 {
			d = 0
		}
		c.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header, "license-chaser/1.0" by
// default. Some license proxies filter on it.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
