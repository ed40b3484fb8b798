package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPConnector is the request/response variant for plain URL fragments. It
// exchanges discrete streamable HTTP rounds instead of holding a persistent
// event stream.
type HTTPConnector struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	conn      mcp.Connection
	connected bool
}

// NewHTTP builds a request/response connector for cfg.URL.
func NewHTTP(cfg Config) *HTTPConnector {
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPConnector{
		endpoint: cfg.URL,
		client:   withHeaders(base, bearerHeaders(cfg.AuthToken, cfg.Headers)),
		logger:   logger,
	}
}

// Endpoint returns the URL this connector targets.
func (c *HTTPConnector) Endpoint() string { return c.endpoint }

// Connect establishes the streamable HTTP channel. Idempotent; on failure no
// partial state survives.
func (c *HTTPConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	transport := &mcp.StreamableClientTransport{
		Endpoint:   c.endpoint,
		HTTPClient: c.client,
	}
	conn, err := transport.Connect(ctx)
	if err != nil {
		c.conn = nil
		return fmt.Errorf("connector: connect %s: %w", c.endpoint, err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Debug("connected", "url", c.endpoint)
	return nil
}

// Disconnect closes the channel; a no-op when unconnected, never fails.
func (c *HTTPConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("closing connection", "url", c.endpoint, "error", err)
	}
	c.conn = nil
	c.connected = false
	return nil
}

// Connected reports whether the channel is currently established.
func (c *HTTPConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Transport exposes the established channel for the protocol handshake.
func (c *HTTPConnector) Transport() mcp.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &heldTransport{conn: c.conn}
}
