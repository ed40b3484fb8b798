package connector

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot determine connector type")
}

func TestNewBuildsHTTPConnector(t *testing.T) {
	t.Parallel()

	conn, err := New(Config{URL: "http://server.local/mcp"})
	require.NoError(t, err)
	httpConn, ok := conn.(*HTTPConnector)
	require.True(t, ok)
	assert.Equal(t, "http://server.local/mcp", httpConn.Endpoint())
	assert.False(t, httpConn.Connected())
}

func TestBearerHeaderPrecedence(t *testing.T) {
	t.Parallel()

	headers := bearerHeaders("secret", map[string]string{
		"Authorization": "Bearer other",
		"X-Team":        "platform",
	})
	assert.Equal(t, []string{"Bearer secret"}, headers.Values("Authorization"))
	assert.Equal(t, "platform", headers.Get("X-Team"))
}

func TestHeaderRoundTripperDoesNotOverrideRequestHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	rt := &headerRoundTripper{
		headers: bearerHeaders("secret", map[string]string{"X-Team": "platform"}),
		next: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			got = req.Header
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, err := http.NewRequest(http.MethodGet, "http://router.local/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("X-Team", "ml")

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "ml", got.Get("X-Team"))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
