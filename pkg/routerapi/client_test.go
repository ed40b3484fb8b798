package routerapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegisterScansResults(t *testing.T) {
	t.Parallel()

	var captured *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RegisterResponse{Results: []RegisterResult{
			{Name: "x", Success: false, Message: "already exists"},
			{Name: "y", Success: true},
		}})
	}))
	defer srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "secret", nil), nil)
	resp, err := client.Register(context.Background(), map[string]any{
		"everything": LaunchSpec{Command: "npx", Args: []string{"server"}, Env: map[string]string{}},
	})
	require.NoError(t, err)

	id, ok := resp.FirstSuccess()
	require.True(t, ok)
	assert.Equal(t, "y", id)

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/api/servers", captured.URL.Path)
	assert.Equal(t, "Bearer secret", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.NotEmpty(t, captured.Header.Get("X-Request-Id"))

	var payload map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Contains(t, payload, "everything")
	assert.Equal(t, "npx", payload["everything"]["command"])
}

func TestClientRegisterNoSuccesses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RegisterResponse{Results: []RegisterResult{
			{Name: "x", Success: false},
		}})
	}))
	defer srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "", nil), nil)
	resp, err := client.Register(context.Background(), map[string]any{"x": LaunchSpec{Command: "cmd"}})
	require.NoError(t, err)
	_, ok := resp.FirstSuccess()
	assert.False(t, ok)
}

func TestClientRegisterStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "", nil), nil)
	_, err := client.Register(context.Background(), map[string]any{"x": LaunchSpec{Command: "cmd"}})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, "register", se.Op)
}

func TestClientStart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/servers/srv-1/start", r.URL.Path)
		_ = json.NewEncoder(w).Encode(StartResponse{Success: true, Status: "starting"})
	}))
	defer srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "", nil), nil)
	resp, err := client.Start(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClientList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode([]ServerInfo{
			{ID: "srv-1", Name: "everything", Status: StatusOnline},
			{ID: "srv-2", Name: "files", Status: "stopped"},
		})
	}))
	defer srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "", nil), nil)
	servers, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "srv-1", servers[0].ID)
	assert.Equal(t, StatusOnline, servers[0].Status)
}

func TestClientTransportErrorIsNotStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(NewEndpoint(srv.URL, "", nil), nil)
	_, err := client.List(context.Background())
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
