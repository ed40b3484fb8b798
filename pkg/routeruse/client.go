package routeruse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Wergmort/mcp-router-use/pkg/connector"
	"github.com/Wergmort/mcp-router-use/pkg/routerapi"
)

// Options customize a Client. The zero value is usable.
type Options struct {
	// ClientName and ClientVersion identify this client during the MCP
	// handshake.
	ClientName    string
	ClientVersion string

	// HTTPClient overrides the client used for management calls and streams.
	HTTPClient *http.Client

	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Timeout bounds each discrete management call. StreamReadTimeout bounds
	// idle reads on the persistent stream.
	Timeout           time.Duration
	StreamReadTimeout time.Duration
}

func (o *Options) normalized() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.ClientName == "" {
		out.ClientName = "mcp-router-use"
	}
	if out.ClientVersion == "" {
		out.ClientVersion = "1.0.0"
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Timeout <= 0 {
		out.Timeout = routerapi.DefaultTimeout
	}
	if out.StreamReadTimeout <= 0 {
		out.StreamReadTimeout = routerapi.DefaultStreamReadTimeout
	}
	return out
}

// Client is the top level entry point. It keeps the configured server
// descriptors, reconciles them against the router and hands out sessions.
//
// All methods are safe for concurrent use, but the client does not serialize
// overlapping CreateSession and CloseSession calls for the same server name;
// callers coordinating a server's lifecycle from multiple goroutines must
// order those themselves.
type Client struct {
	opts   Options
	logger *slog.Logger

	router    *RouterConfig
	endpoint  *routerapi.Endpoint
	api       *routerapi.Client
	reconcile *routerapi.Reconciler

	mu       sync.Mutex
	servers  map[string]*ServerDescriptor
	sessions map[string]*Session
	active   []string
}

// New builds a client from a configuration. A nil configuration yields an
// empty client; servers can be added later with AddServer. The router section
// is optional, but command-based servers cannot connect without one.
func New(cfg *Config, opts *Options) (*Client, error) {
	options := opts.normalized()
	c := &Client{
		opts:     options,
		logger:   options.Logger,
		servers:  make(map[string]*ServerDescriptor),
		sessions: make(map[string]*Session),
	}
	if cfg != nil && cfg.Router != nil {
		if cfg.Router.RouterURL == "" {
			return nil, &ConfigError{Op: "new", Reason: "router section has no router_url"}
		}
		router := *cfg.Router
		c.router = &router
		c.endpoint = routerapi.NewEndpoint(router.RouterURL, router.AuthToken, router.Headers).
			WithTimeouts(options.Timeout, options.StreamReadTimeout)
		c.api = routerapi.NewClient(c.endpoint, &routerapi.ClientOptions{
			HTTPClient: options.HTTPClient,
			Logger:     options.Logger,
		})
		c.reconcile = routerapi.NewReconciler(c.api, options.Logger)
	}
	if cfg != nil {
		for name, sc := range cfg.Servers {
			c.servers[name] = descriptorFromConfig(name, sc)
		}
	}
	return c, nil
}

// FromConfigFile loads a JSON configuration file and builds a client from it.
func FromConfigFile(path string, opts *Options) (*Client, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

// AddServer registers a new server descriptor under name.
func (c *Client) AddServer(name string, sc ServerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[name]; ok {
		return &ConfigError{Op: "add_server", Server: name, Reason: "server already configured"}
	}
	c.servers[name] = descriptorFromConfig(name, sc)
	return nil
}

// RemoveServer drops a server descriptor. An open session for the server is
// left running; close it separately with CloseSession.
func (c *Client) RemoveServer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[name]; !ok {
		return &ConfigError{Op: "remove_server", Server: name, Reason: "unknown server"}
	}
	delete(c.servers, name)
	c.active = slices.DeleteFunc(c.active, func(n string) bool { return n == name })
	return nil
}

// ServerNames returns the configured server names in sorted order.
func (c *Client) ServerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Server returns a snapshot of the named descriptor.
func (c *Client) Server(name string) (ServerDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.servers[name]
	if !ok {
		return ServerDescriptor{}, false
	}
	return *d, true
}

// SaveConfig writes the current configuration, resolved server ids included,
// back to a JSON file. Saving after session creation persists the router's
// identities for the next run.
func (c *Client) SaveConfig(path string) error {
	c.mu.Lock()
	cfg := &Config{Servers: make(map[string]ServerConfig, len(c.servers))}
	if c.router != nil {
		router := *c.router
		cfg.Router = &router
	}
	for name, d := range c.servers {
		cfg.Servers[name] = d.configEntry()
	}
	c.mu.Unlock()
	return cfg.Save(path)
}

func (c *Client) descriptor(op, name string) (*ServerDescriptor, error) {
	if len(c.servers) == 0 {
		return nil, &ConfigError{Op: op, Reason: "no servers configured"}
	}
	d, ok := c.servers[name]
	if !ok {
		return nil, &ConfigError{Op: op, Server: name, Reason: "unknown server"}
	}
	return d, nil
}

func (c *Client) requireRouter(op, name string) error {
	if c.api == nil {
		return &ConfigError{Op: op, Server: name, Reason: "no router configured"}
	}
	return nil
}

// RegisterServer registers the named server with the router and caches the
// resolved id. A descriptor that already carries an id is returned as-is,
// without a network call. URL-based servers are rejected before any network
// call.
func (c *Client) RegisterServer(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	d, err := c.descriptor("register", name)
	if err == nil {
		err = c.requireRouter("register", name)
	}
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if d.ServerID != "" {
		id := d.ServerID
		c.mu.Unlock()
		return id, nil
	}
	body, cerr := d.registrationBody()
	c.mu.Unlock()
	if cerr != nil {
		return "", cerr
	}

	id, verdict := c.reconcile.EnsureRegistered(ctx, name, body)
	if id == "" {
		return "", fmt.Errorf("routeruse: register server %q: %s", name, verdict)
	}
	c.mu.Lock()
	d.ServerID = id
	d.Status = StatusRegistered
	c.mu.Unlock()
	return id, nil
}

// StartServer asks the router to start the named server, registering it first
// when it has no cached id.
func (c *Client) StartServer(ctx context.Context, name string) error {
	c.mu.Lock()
	d, err := c.descriptor("start", name)
	if err == nil {
		err = c.requireRouter("start", name)
	}
	id := ""
	if err == nil {
		id = d.ServerID
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if id == "" {
		if id, err = c.RegisterServer(ctx, name); err != nil {
			return err
		}
	}
	if !c.reconcile.EnsureStarted(ctx, id) {
		return fmt.Errorf("routeruse: start server %q: router did not confirm start", name)
	}
	c.mu.Lock()
	d.Status = StatusStarting
	c.mu.Unlock()
	return nil
}

// RouterServers fetches the router's authoritative server list. Unlike the
// session paths this reports transport failures honestly.
func (c *Client) RouterServers(ctx context.Context) ([]routerapi.ServerInfo, error) {
	if err := c.requireRouter("list", ""); err != nil {
		return nil, err
	}
	return c.api.List(ctx)
}

// CreateSessionOptions tune CreateSession.
type CreateSessionOptions struct {
	// SkipInitialize returns the session without performing the MCP
	// handshake; the caller runs Initialize itself.
	SkipInitialize bool
	// SkipRegister connects with the cached server id as-is, without
	// reconciling it against the router's list first.
	SkipRegister bool
}

// CreateSession builds, and by default initializes, a session for the named
// server. Command-based servers are reconciled against the router first: a
// missing or stale cached id triggers registration and start, while a router
// that cannot be reached leaves the cached id in place. An existing open
// session for the name is returned as-is.
func (c *Client) CreateSession(ctx context.Context, name string, opts *CreateSessionOptions) (*Session, error) {
	var options CreateSessionOptions
	if opts != nil {
		options = *opts
	}

	c.mu.Lock()
	if sess, ok := c.sessions[name]; ok {
		c.mu.Unlock()
		return sess, nil
	}
	d, err := c.descriptor("create_session", name)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	snapshot := *d
	c.mu.Unlock()

	conn, err := c.buildConnector(ctx, d, snapshot, options)
	if err != nil {
		return nil, err
	}

	impl := &mcp.Implementation{Name: c.opts.ClientName, Version: c.opts.ClientVersion}
	sess := NewSession(conn, impl, c.logger)
	if !options.SkipInitialize {
		if err := sess.Initialize(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		d.Status = StatusOnline
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.sessions[name] = sess
	if !slices.Contains(c.active, name) {
		c.active = append(c.active, name)
	}
	c.mu.Unlock()
	return sess, nil
}

func (c *Client) buildConnector(ctx context.Context, d *ServerDescriptor, snapshot ServerDescriptor, options CreateSessionOptions) (connector.Connector, error) {
	if snapshot.URL != "" {
		return connector.New(connector.Config{
			URL:        snapshot.URL,
			AuthToken:  snapshot.AuthToken,
			Headers:    snapshot.Headers,
			HTTPClient: c.opts.HTTPClient,
			Logger:     c.logger,
		})
	}

	if err := c.requireRouter("create_session", snapshot.Name); err != nil {
		return nil, err
	}

	serverID := snapshot.ServerID
	if !options.SkipRegister {
		body, cerr := snapshot.registrationBody()
		if cerr != nil && serverID == "" {
			return nil, cerr
		}
		var payload any
		if cerr == nil {
			payload = body
		}
		id, verdict := c.reconcile.Resolve(ctx, snapshot.Name, serverID, payload)
		if id == "" {
			// Non-fatal: the server may be reachable through the shared
			// stream even though the router calls could not confirm it.
			c.logger.Warn("could not resolve server with router, connecting unbound",
				"server", snapshot.Name, "verdict", verdict)
		} else {
			serverID = id
			c.mu.Lock()
			d.ServerID = id
			if verdict == routerapi.VerdictConfirmed {
				d.Status = StatusRegistered
			}
			c.mu.Unlock()
		}
	}

	endpoint, reconcile := c.sessionEndpoint(snapshot)
	return connector.NewStream(endpoint, serverID, reconcile, &connector.StreamOptions{
		HTTPClient: c.opts.HTTPClient,
		Logger:     c.logger,
	}), nil
}

// sessionEndpoint returns the endpoint and reconciler a session connector
// should use. A server with its own credentials gets a dedicated endpoint
// whose token and headers override the router section's.
func (c *Client) sessionEndpoint(d ServerDescriptor) (*routerapi.Endpoint, *routerapi.Reconciler) {
	if d.AuthToken == "" && len(d.Headers) == 0 {
		return c.endpoint, c.reconcile
	}
	token := d.AuthToken
	if token == "" {
		token = c.router.AuthToken
	}
	headers := make(map[string]string, len(c.router.Headers)+len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = v
	}
	for k, v := range c.router.Headers {
		if _, ok := headers[k]; !ok {
			headers[k] = v
		}
	}
	endpoint := routerapi.NewEndpoint(c.router.RouterURL, token, headers).
		WithTimeouts(c.opts.Timeout, c.opts.StreamReadTimeout)
	api := routerapi.NewClient(endpoint, &routerapi.ClientOptions{
		HTTPClient: c.opts.HTTPClient,
		Logger:     c.logger,
	})
	return endpoint, routerapi.NewReconciler(api, c.logger)
}

// CreateAllSessions creates a session for every configured server, in sorted
// name order. Failures do not stop the sweep: the successfully created
// sessions are returned together with the joined errors.
func (c *Client) CreateAllSessions(ctx context.Context, opts *CreateSessionOptions) (map[string]*Session, error) {
	sessions := make(map[string]*Session)
	var errs []error
	for _, name := range c.ServerNames() {
		sess, err := c.CreateSession(ctx, name, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sessions[name] = sess
	}
	return sessions, errors.Join(errs...)
}

// GetSession returns the open session for name, if any.
func (c *Client) GetSession(name string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[name]
	return sess, ok
}

// ActiveSessions returns the names of open sessions in activation order.
func (c *Client) ActiveSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active)
}

// CloseSession disconnects and forgets the named session. Closing a session
// that does not exist is a no-op. The session is removed from the client's
// maps even when the disconnect reports an error.
func (c *Client) CloseSession(name string) error {
	c.mu.Lock()
	sess, ok := c.sessions[name]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.sessions, name)
	c.active = slices.DeleteFunc(c.active, func(n string) bool { return n == name })
	if d, ok := c.servers[name]; ok {
		d.Status = StatusOffline
	}
	c.mu.Unlock()

	if err := sess.Disconnect(); err != nil {
		return fmt.Errorf("routeruse: close session %q: %w", name, err)
	}
	return nil
}

// CloseAllSessions closes every open session, in sorted name order, and
// aggregates the failures. All sessions are attempted regardless of earlier
// errors, and the client's session state is emptied either way.
func (c *Client) CloseAllSessions() error {
	c.mu.Lock()
	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	slices.Sort(names)
	c.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := c.CloseSession(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
