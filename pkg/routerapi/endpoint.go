package routerapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds discrete management API calls.
	DefaultTimeout = 30 * time.Second
	// DefaultStreamReadTimeout bounds the idle read window of the persistent
	// event stream. It is deliberately much longer than DefaultTimeout so the
	// stream survives quiet periods between tool calls.
	DefaultStreamReadTimeout = 5 * time.Minute
)

// Endpoint describes the router's HTTP surface. It is immutable once
// constructed and safe to share by reference across the reconciler and any
// number of connectors.
type Endpoint struct {
	baseURL           string
	headers           http.Header
	timeout           time.Duration
	streamReadTimeout time.Duration
}

// NewEndpoint builds an Endpoint for the router at baseURL. When authToken is
// non-empty an Authorization bearer header is set first; extra headers merge
// on top without overriding keys that are already set.
func NewEndpoint(baseURL, authToken string, extra map[string]string) *Endpoint {
	headers := make(http.Header)
	if authToken != "" {
		headers.Set("Authorization", "Bearer "+authToken)
	}
	for k, v := range extra {
		if headers.Get(k) == "" {
			headers.Set(k, v)
		}
	}
	return &Endpoint{
		baseURL:           strings.TrimRight(baseURL, "/"),
		headers:           headers,
		timeout:           DefaultTimeout,
		streamReadTimeout: DefaultStreamReadTimeout,
	}
}

// WithTimeouts returns a copy of the endpoint with the given bounds applied.
// A non-positive value keeps the current bound.
func (e *Endpoint) WithTimeouts(timeout, streamRead time.Duration) *Endpoint {
	clone := *e
	if timeout > 0 {
		clone.timeout = timeout
	}
	if streamRead > 0 {
		clone.streamReadTimeout = streamRead
	}
	return &clone
}

// BaseURL returns the router base URL without a trailing slash.
func (e *Endpoint) BaseURL() string { return e.baseURL }

// Headers returns a copy of the merged request headers.
func (e *Endpoint) Headers() http.Header {
	clone := make(http.Header, len(e.headers))
	for k, values := range e.headers {
		clone[k] = append([]string(nil), values...)
	}
	return clone
}

// Timeout is the bound for discrete management API calls.
func (e *Endpoint) Timeout() time.Duration { return e.timeout }

// StreamReadTimeout is the idle read window of the persistent stream.
func (e *Endpoint) StreamReadTimeout() time.Duration { return e.streamReadTimeout }

// ServersURL is the server management collection endpoint.
func (e *Endpoint) ServersURL() string { return e.baseURL + "/api/servers" }

// StartURL is the start endpoint for the server with the given id.
func (e *Endpoint) StartURL(id string) string {
	return e.ServersURL() + "/" + url.PathEscape(id) + "/start"
}

// StreamURL is the shared streaming endpoint all sessions connect through.
func (e *Endpoint) StreamURL() string { return e.baseURL + "/mcp" }
