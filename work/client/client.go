package client

import (
	"net/http"
	"time"
)

// defaultUserAgent is presented to upstream providers that reject requests
// without a player-looking agent string.
const defaultUserAgent = "VLC/3.0.18 LibVLC/3.0.18"

// HeaderSettingClient wraps an http.Client and applies consistent request
// headers on every call. Upstream IPTV providers are picky about the
// User-Agent and sometimes require Origin/Referer, so all outbound traffic
// funnels through this wrapper instead of calling http.Client directly.
type HeaderSettingClient struct {
	Client    *http.Client
	UserAgent string
}

// New creates a HeaderSettingClient with the given timeout. Redirects are
// followed up to the standard ten-hop limit, and the final URL after
// redirects is readable from resp.Request.URL.
func New(timeout time.Duration) *HeaderSettingClient {
	return &HeaderSettingClient{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		UserAgent: defaultUserAgent,
	}
}

// Do executes the request with the default headers applied.
func (c *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithHeaders(req, "", "", "")
}

// DoWithHeaders executes the request with explicit header overrides. Empty
// values fall back to the client defaults (or are omitted entirely for
// Origin and Referer).
func (c *HeaderSettingClient) DoWithHeaders(req *http.Request, userAgent, origin, referrer string) (*http.Response, error) {
	if userAgent == "" {
		userAgent = c.UserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")

	return c.Client.Do(req)
}

// NoRedirect returns a copy of the client that reports redirects instead of
// following them. The stream resolver uses this to capture the Location
// header from providers that bounce manifest requests to a token URL.
func (c *HeaderSettingClient) NoRedirect() *HeaderSettingClient {
	inner := *c.Client
	inner.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HeaderSettingClient{
		Client:    &inner,
		UserAgent: c.UserAgent,
	}
}
