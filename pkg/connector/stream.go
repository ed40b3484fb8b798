package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Wergmort/mcp-router-use/pkg/routerapi"
)

// RunEnsurer verifies a registered server is running before the stream
// opens. *routerapi.Reconciler satisfies it.
type RunEnsurer interface {
	EnsureRunning(ctx context.Context, id string) error
}

// StreamOptions configure a StreamConnector.
type StreamOptions struct {
	// HTTPClient overrides the client used to open the stream. Endpoint
	// headers are layered on top of its transport.
	HTTPClient *http.Client
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o *StreamOptions) normalized() StreamOptions {
	if o == nil {
		return StreamOptions{}
	}
	return *o
}

// StreamConnector owns one persistent event stream to the router's shared
// streaming endpoint. All tool traffic for the bound server flows over it;
// the stream's read loop belongs to the protocol session once the handshake
// completes.
type StreamConnector struct {
	endpoint  *routerapi.Endpoint
	serverID  string
	reconcile RunEnsurer
	client    *http.Client
	logger    *slog.Logger

	mu        sync.Mutex
	conn      mcp.Connection
	connected bool
	cancel    context.CancelFunc
}

// NewStream builds a connector for the router's shared stream. serverID may
// be empty when the session is not bound to a registered server; reconcile
// may be nil to skip the pre-connect check.
func NewStream(endpoint *routerapi.Endpoint, serverID string, reconcile RunEnsurer, opts *StreamOptions) *StreamConnector {
	options := opts.normalized()
	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &StreamConnector{
		endpoint:  endpoint,
		serverID:  serverID,
		reconcile: reconcile,
		client:    withHeaders(options.HTTPClient, endpoint.Headers()),
		logger:    options.Logger,
	}
}

// ServerID returns the remote server identity this connector is bound to,
// empty when unbound.
func (c *StreamConnector) ServerID() string { return c.serverID }

// Endpoint returns the router endpoint this connector streams through.
func (c *StreamConnector) Endpoint() *routerapi.Endpoint { return c.endpoint }

// Connect opens the stream. A connector bound to a server id first verifies
// through the reconciler that the server is running; failing that check is
// fatal for this attempt. Connecting an already-connected connector is a
// no-op.
func (c *StreamConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.logger.Debug("already connected to router stream", "url", c.endpoint.StreamURL())
		return nil
	}
	if c.serverID != "" && c.reconcile != nil {
		if err := c.reconcile.EnsureRunning(ctx, c.serverID); err != nil {
			c.resetLocked()
			return fmt.Errorf("connector: server %q is not reachable through the router: %w", c.serverID, err)
		}
	}
	transport := &mcp.SSEClientTransport{
		Endpoint:   c.endpoint.StreamURL(),
		HTTPClient: c.client,
	}
	// The short API timeout bounds stream establishment only. The stream
	// itself stays bound to streamCtx, cancelled on Disconnect, so the dial
	// bound cannot tear down an already-open stream.
	streamCtx, cancel := context.WithCancel(ctx)
	dialBound := time.AfterFunc(c.endpoint.Timeout(), cancel)
	conn, err := transport.Connect(streamCtx)
	dialBound.Stop()
	if err != nil {
		cancel()
		c.resetLocked()
		return fmt.Errorf("connector: open router stream: %w", err)
	}
	c.cancel = cancel
	c.conn = &idleTimeoutConnection{delegate: conn, timeout: c.endpoint.StreamReadTimeout()}
	c.connected = true
	c.logger.Debug("connected to router stream", "url", c.endpoint.StreamURL(), "server", c.serverID)
	return nil
}

// Disconnect closes the stream. Safe on an unconnected or already
// disconnected connector; close failures are logged, never returned.
func (c *StreamConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("closing router stream", "server", c.serverID, "error", err)
	}
	c.resetLocked()
	return nil
}

// Connected reports whether the stream is currently open.
func (c *StreamConnector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Transport exposes the open stream for the protocol handshake.
func (c *StreamConnector) Transport() mcp.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &heldTransport{conn: c.conn}
}

func (c *StreamConnector) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.conn = nil
	c.connected = false
}

// idleTimeoutConnection bounds each read with the stream's idle window so a
// router that goes permanently silent surfaces an error instead of blocking
// forever.
type idleTimeoutConnection struct {
	delegate mcp.Connection
	timeout  time.Duration
}

func (c *idleTimeoutConnection) SessionID() string { return c.delegate.SessionID() }

func (c *idleTimeoutConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.delegate.Read(ctx)
}

func (c *idleTimeoutConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	return c.delegate.Write(ctx, msg)
}

func (c *idleTimeoutConnection) Close() error { return c.delegate.Close() }
