package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wergmort/mcp-router-use/pkg/routerapi"
)

// fakeStreamHandler speaks just enough of the event stream protocol for a
// connector to consider itself connected: it announces the message endpoint
// and then holds the stream open until the client goes away.
func fakeStreamHandler(t *testing.T, gotAuth *atomic.Value) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			gotAuth.Store(r.Header.Get("Authorization"))
		}
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: endpoint\ndata: /messages\n\n")
		flusher.Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

type recordingEnsurer struct {
	calls atomic.Int32
	err   error
}

func (e *recordingEnsurer) EnsureRunning(ctx context.Context, id string) error {
	e.calls.Add(1)
	return e.err
}

func TestStreamConnectorLifecycle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(fakeStreamHandler(t, nil))
	defer srv.Close()

	ensurer := &recordingEnsurer{}
	conn := NewStream(routerapi.NewEndpoint(srv.URL, "", nil), "srv-1", ensurer, nil)
	assert.False(t, conn.Connected())

	require.NoError(t, conn.Connect(context.Background()))
	assert.True(t, conn.Connected())
	assert.Equal(t, int32(1), ensurer.calls.Load())

	// Connect again is a no-op, the running check included.
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, int32(1), ensurer.calls.Load())

	require.NoError(t, conn.Disconnect())
	assert.False(t, conn.Connected())
	require.NoError(t, conn.Disconnect())
}

func TestStreamConnectorRunningCheckFailureIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(fakeStreamHandler(t, nil))
	defer srv.Close()

	ensurer := &recordingEnsurer{err: fmt.Errorf("server %q not found in router", "srv-1")}
	conn := NewStream(routerapi.NewEndpoint(srv.URL, "", nil), "srv-1", ensurer, nil)

	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable through the router")
	assert.False(t, conn.Connected())
}

func TestStreamConnectorUnboundSkipsRunningCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(fakeStreamHandler(t, nil))
	defer srv.Close()

	conn := NewStream(routerapi.NewEndpoint(srv.URL, "", nil), "", &recordingEnsurer{}, nil)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()
	assert.True(t, conn.Connected())
}

func TestStreamConnectorSendsEndpointHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	srv := httptest.NewServer(fakeStreamHandler(t, &gotAuth))
	defer srv.Close()

	conn := NewStream(routerapi.NewEndpoint(srv.URL, "secret", nil), "", nil, nil)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	assert.Equal(t, "Bearer secret", gotAuth.Load())
}

func TestStreamConnectorConnectFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	conn := NewStream(routerapi.NewEndpoint(srv.URL, "", nil), "", nil, nil)
	require.Error(t, conn.Connect(context.Background()))
	assert.False(t, conn.Connected())
}

// blockingConnection parks every Read until its context ends or the
// connection is closed.
type blockingConnection struct {
	closed chan struct{}
}

func newBlockingConnection() *blockingConnection {
	return &blockingConnection{closed: make(chan struct{})}
}

func (c *blockingConnection) SessionID() string { return "blocking" }

func (c *blockingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *blockingConnection) Write(ctx context.Context, msg jsonrpc.Message) error { return nil }

func (c *blockingConnection) Close() error {
	close(c.closed)
	return nil
}

func TestIdleTimeoutConnectionBoundsReads(t *testing.T) {
	t.Parallel()

	conn := &idleTimeoutConnection{delegate: newBlockingConnection(), timeout: 20 * time.Millisecond}
	start := time.Now()
	_, err := conn.Read(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIdleTimeoutConnectionZeroTimeoutLeavesReadsUnbounded(t *testing.T) {
	t.Parallel()

	delegate := newBlockingConnection()
	conn := &idleTimeoutConnection{delegate: delegate}

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Read returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, conn.Close())
	err := <-done
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamConnectorDialBoundedByAPITimeout(t *testing.T) {
	t.Parallel()

	// The stream endpoint accepts the request but never announces the
	// message endpoint, so the dial can only end by timing out.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	endpoint := routerapi.NewEndpoint(srv.URL, "", nil).WithTimeouts(50*time.Millisecond, 0)
	conn := NewStream(endpoint, "", nil, nil)

	start := time.Now()
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, conn.Connected())
}

func TestStreamConnectorDialBoundDoesNotKillOpenStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(fakeStreamHandler(t, nil))
	defer srv.Close()

	endpoint := routerapi.NewEndpoint(srv.URL, "", nil).WithTimeouts(100*time.Millisecond, 0)
	conn := NewStream(endpoint, "", nil, nil)
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Disconnect()

	// Wait past the dial bound, then prove the stream is still readable: a
	// read against the live stream blocks rather than failing with a
	// cancelled context.
	time.Sleep(200 * time.Millisecond)
	readCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	transport := conn.Transport()
	established, err := transport.Connect(context.Background())
	require.NoError(t, err)
	_, err = established.Read(readCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportBeforeConnectRefusesHandshake(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(fakeStreamHandler(t, nil))
	defer srv.Close()

	conn := NewStream(routerapi.NewEndpoint(srv.URL, "", nil), "", nil, nil)
	_, err := conn.Transport().Connect(context.Background())
	require.Error(t, err)
}
