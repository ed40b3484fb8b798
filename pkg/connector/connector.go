package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Connector owns one channel to an MCP endpoint. Implementations serialize
// their own state changes; the owning session is expected to drive Connect,
// the handshake, and Disconnect in order.
type Connector interface {
	// Connect establishes the channel. Connecting an already-connected
	// connector is a no-op. On failure every partially-acquired resource is
	// released before the error is returned.
	Connect(ctx context.Context) error
	// Disconnect tears the channel down. It is a no-op on an unconnected
	// connector and never fails.
	Disconnect() error
	// Connected reports whether the channel is currently established.
	Connected() bool
	// Transport exposes the established channel for the protocol handshake.
	// Only valid between Connect and Disconnect.
	Transport() mcp.Transport
}

// Config is a resolved server configuration fragment handed to the factory.
type Config struct {
	// URL is the endpoint of an already-reachable MCP server.
	URL string
	// AuthToken, when set, becomes an Authorization bearer header.
	AuthToken string
	// Headers merge on top of the auth header without overriding keys that
	// are already set.
	Headers map[string]string
	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// New builds a connector from a resolved configuration fragment. Only
// URL-shaped fragments can be built here; router stream connectors carry
// extra state and are built with NewStream.
func New(cfg Config) (Connector, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("connector: cannot determine connector type: fragment has no url")
	}
	return NewHTTP(cfg), nil
}

// heldTransport hands an already-established connection to the protocol
// client, which expects to dial a transport itself.
type heldTransport struct {
	conn mcp.Connection
}

func (t *heldTransport) Connect(context.Context) (mcp.Connection, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("connector: not connected")
	}
	return t.conn, nil
}
