package routeruse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Wergmort/mcp-router-use/pkg/connector"
)

// SessionState tracks the session lifecycle.
type SessionState string

const (
	SessionCreated      SessionState = "created"
	SessionInitializing SessionState = "initializing"
	SessionReady        SessionState = "ready"
	SessionClosed       SessionState = "closed"
)

// Session owns one connector and, once initialized, the MCP client session
// speaking through it. The embedded tool snapshot is refreshed on every
// successful Initialize.
type Session struct {
	conn   connector.Connector
	impl   *mcp.Implementation
	logger *slog.Logger

	mu    sync.Mutex
	state SessionState
	sess  *mcp.ClientSession
	tools []*mcp.Tool
}

// NewSession wraps a connector. The session starts out unconnected; call
// Initialize before issuing requests.
func NewSession(conn connector.Connector, impl *mcp.Implementation, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:   conn,
		impl:   impl,
		logger: logger,
		state:  SessionCreated,
	}
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connector exposes the underlying connector.
func (s *Session) Connector() connector.Connector { return s.conn }

// Initialize connects the transport, performs the MCP handshake and captures
// the server's tool list. Calling it on a ready session is a no-op. On
// failure the connector is torn down so a later retry starts clean.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case SessionReady:
		s.mu.Unlock()
		return nil
	case SessionClosed:
		s.mu.Unlock()
		return errors.New("routeruse: session closed")
	case SessionInitializing:
		s.mu.Unlock()
		return errors.New("routeruse: session already initializing")
	}
	s.state = SessionInitializing
	s.mu.Unlock()

	sess, tools, err := s.establish(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = SessionCreated
		return err
	}
	s.sess = sess
	s.tools = tools
	s.state = SessionReady
	return nil
}

func (s *Session) establish(ctx context.Context) (*mcp.ClientSession, []*mcp.Tool, error) {
	if err := s.conn.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("routeruse: connect: %w", err)
	}
	client := mcp.NewClient(s.impl, nil)
	sess, err := client.Connect(ctx, s.conn.Transport(), nil)
	if err != nil {
		if derr := s.conn.Disconnect(); derr != nil {
			s.logger.Warn("disconnect after failed handshake", "error", derr)
		}
		return nil, nil, fmt.Errorf("routeruse: initialize: %w", err)
	}
	res, err := sess.ListTools(ctx, nil)
	if err != nil {
		if isMethodUnavailableError(err, "tools/list") {
			return sess, nil, nil
		}
		_ = sess.Close()
		if derr := s.conn.Disconnect(); derr != nil {
			s.logger.Warn("disconnect after failed tool discovery", "error", derr)
		}
		return nil, nil, fmt.Errorf("routeruse: list tools: %w", err)
	}
	return sess, res.Tools, nil
}

// Tools returns the tool snapshot captured during Initialize.
func (s *Session) Tools() []*mcp.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mcp.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Session) ready() (*mcp.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionReady || s.sess == nil {
		return nil, fmt.Errorf("routeruse: session not ready (state %s)", s.state)
	}
	return s.sess, nil
}

// CallTool invokes a tool on the remote server.
func (s *Session) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	sess, err := s.ready()
	if err != nil {
		return nil, err
	}
	return sess.CallTool(ctx, params)
}

// ListResources lists the server's resources, coercing "method not found"
// style failures into an empty result.
func (s *Session) ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	sess, err := s.ready()
	if err != nil {
		return nil, err
	}
	res, err := sess.ListResources(ctx, params)
	if err != nil && isMethodUnavailableError(err, "resources/list") {
		return &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}, nil
	}
	return res, err
}

// ReadResource reads one resource by URI.
func (s *Session) ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
	sess, err := s.ready()
	if err != nil {
		return nil, err
	}
	return sess.ReadResource(ctx, params)
}

// ListPrompts lists the server's prompts, coercing "method not found" style
// failures into an empty result.
func (s *Session) ListPrompts(ctx context.Context, params *mcp.ListPromptsParams) (*mcp.ListPromptsResult, error) {
	sess, err := s.ready()
	if err != nil {
		return nil, err
	}
	res, err := sess.ListPrompts(ctx, params)
	if err != nil && isMethodUnavailableError(err, "prompts/list") {
		return &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}, nil
	}
	return res, err
}

// Disconnect closes the MCP session and the connector. It is safe to call on
// a session that never initialized.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.tools = nil
	s.state = SessionClosed
	s.mu.Unlock()

	var errs []error
	if sess != nil {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("routeruse: close session: %w", err))
		}
	}
	if err := s.conn.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("routeruse: disconnect: %w", err))
	}
	return errors.Join(errs...)
}

func isMethodUnavailableError(err error, method string) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	if !(strings.Contains(lower, "method not found") ||
		strings.Contains(lower, "not implemented") ||
		strings.Contains(lower, "unsupported") ||
		strings.Contains(lower, "does not support") ||
		strings.Contains(lower, "unimplemented")) {
		return false
	}
	method = strings.ToLower(method)
	if strings.Contains(lower, method) {
		return true
	}
	for _, part := range strings.FieldsFunc(method, func(r rune) bool {
		return r == '/' || r == ':' || r == '.' || r == '_' || r == '-'
	}) {
		if part != "" && strings.Contains(lower, part) {
			return true
		}
	}
	return true
}
