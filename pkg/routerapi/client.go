package routerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// StatusOnline is the router-side status of a server that is ready to serve
// traffic through the shared stream.
const StatusOnline = "online"

// LaunchSpec describes how the router should launch a registered server.
type LaunchSpec struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// ServerInfo is one entry of the router's authoritative server list.
type ServerInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
}

// RegisterResult reports the outcome for a single server within a
// registration request.
type RegisterResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterResponse is the body returned by POST /api/servers.
type RegisterResponse struct {
	Results []RegisterResult `json:"results"`
}

// FirstSuccess returns the name of the first successful result. The router
// may report partial failures; the first success wins.
func (r *RegisterResponse) FirstSuccess() (string, bool) {
	for _, res := range r.Results {
		if res.Success {
			return res.Name, true
		}
	}
	return "", false
}

// StartResponse is the body returned by POST /api/servers/{id}/start.
type StartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// StatusError reports an unexpected HTTP status from the router. It lets
// callers tell a definitive remote refusal apart from a transport failure.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("routerapi: %s returned status %d", e.Op, e.Status)
}

// ClientOptions configure a Client.
type ClientOptions struct {
	// HTTPClient overrides the client used for management calls.
	HTTPClient *http.Client
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o *ClientOptions) normalized() ClientOptions {
	if o == nil {
		return ClientOptions{}
	}
	return *o
}

// Client issues the router's discrete management API calls, each bounded by
// the endpoint's short timeout. Errors are reported honestly; best-effort
// semantics live in Reconciler.
type Client struct {
	endpoint *Endpoint
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a Client for the given endpoint. Pass nil options to fall
// back to defaults.
func NewClient(endpoint *Endpoint, opts *ClientOptions) *Client {
	options := opts.normalized()
	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Client{endpoint: endpoint, http: options.HTTPClient, logger: options.Logger}
}

// Endpoint returns the endpoint this client targets.
func (c *Client) Endpoint() *Endpoint { return c.endpoint }

// Register submits a registration payload, a mapping of server name to
// launch spec or pre-shaped body. Success requires HTTP 200 or 201; the
// caller scans the results list for the first successful entry.
func (c *Client) Register(ctx context.Context, payload map[string]any) (*RegisterResponse, error) {
	var out RegisterResponse
	status, err := c.do(ctx, http.MethodPost, c.endpoint.ServersURL(), payload, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &StatusError{Op: "register", Status: status}
	}
	return &out, nil
}

// Start asks the router to start the server with the given id. Success
// requires HTTP 200; the body's success flag is left to the caller.
func (c *Client) Start(ctx context.Context, id string) (*StartResponse, error) {
	var out StartResponse
	status, err := c.do(ctx, http.MethodPost, c.endpoint.StartURL(id), nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "start", Status: status}
	}
	return &out, nil
}

// List fetches the router's authoritative server list.
func (c *Client) List(ctx context.Context) ([]ServerInfo, error) {
	var out []ServerInfo
	status, err := c.do(ctx, http.MethodGet, c.endpoint.ServersURL(), nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "list", Status: status}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, rawurl string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("routerapi: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(ctx, c.endpoint.Timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return 0, fmt.Errorf("routerapi: build request: %w", err)
	}
	for k, values := range c.endpoint.Headers() {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("routerapi: %s %s: %w", method, rawurl, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("routerapi: read response: %w", err)
	}
	if out != nil && resp.StatusCode < 300 && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("routerapi: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
