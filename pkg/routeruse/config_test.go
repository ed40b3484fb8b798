package routeruse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "mcpRouter": {
    "router_url": "http://127.0.0.1:9999/",
    "auth_token": "secret",
    "headers": {"X-Team": "platform"}
  },
  "mcpServers": {
    "everything": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-everything"],
      "env": {"DEBUG": "1"}
    },
    "remote": {
      "url": "http://server.local/mcp",
      "auth_token": "other"
    }
  }
}`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Router)
	assert.Equal(t, "http://127.0.0.1:9999/", cfg.Router.RouterURL)
	assert.Equal(t, "secret", cfg.Router.AuthToken)
	assert.Equal(t, "platform", cfg.Router.Headers["X-Team"])

	require.Len(t, cfg.Servers, 2)
	everything := cfg.Servers["everything"]
	assert.Equal(t, "npx", everything.Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-everything"}, everything.Args)
	assert.Equal(t, "1", everything.Env["DEBUG"])
	assert.Empty(t, everything.ServerID)

	remote := cfg.Servers["remote"]
	assert.Equal(t, "http://server.local/mcp", remote.URL)
	assert.Equal(t, "other", remote.AuthToken)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

// A resolved server id survives a save and reload, so the next run can skip
// registration when the router still knows the id.
func TestSaveConfigPersistsServerIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	client, err := FromConfigFile(path, nil)
	require.NoError(t, err)

	client.mu.Lock()
	client.servers["everything"].ServerID = "srv-42"
	client.mu.Unlock()

	saved := filepath.Join(dir, "saved.json")
	require.NoError(t, client.SaveConfig(saved))

	reloaded, err := LoadConfig(saved)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Router)
	assert.Equal(t, "secret", reloaded.Router.AuthToken)
	assert.Equal(t, "srv-42", reloaded.Servers["everything"].ServerID)
	assert.Equal(t, "npx", reloaded.Servers["everything"].Command)
	assert.Equal(t, "http://server.local/mcp", reloaded.Servers["remote"].URL)
}
