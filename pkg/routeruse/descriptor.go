package routeruse

import (
	"maps"
	"slices"

	"github.com/Wergmort/mcp-router-use/pkg/routerapi"
)

// Status describes what the client last learned about a server's lifecycle
// on the router. It is advisory: the router's list is always the authority.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusRegistered Status = "registered"
	StatusStarting   Status = "starting"
	StatusOnline     Status = "online"
	StatusOffline    Status = "offline"
)

// ServerDescriptor is the client's working record for one configured server.
type ServerDescriptor struct {
	Name string

	// Launch spec for command-based servers.
	Command string
	Args    []string
	Env     map[string]string

	// URL is set for servers that are already reachable and therefore not
	// registrable through the router.
	URL string

	// Per-server credentials override the router section's when set.
	AuthToken string
	Headers   map[string]string

	ServerID string
	Status   Status
}

func descriptorFromConfig(name string, sc ServerConfig) *ServerDescriptor {
	return &ServerDescriptor{
		Name:      name,
		Command:   sc.Command,
		Args:      slices.Clone(sc.Args),
		Env:       maps.Clone(sc.Env),
		URL:       sc.URL,
		AuthToken: sc.AuthToken,
		Headers:   maps.Clone(sc.Headers),
		ServerID:  sc.ServerID,
		Status:    StatusUnknown,
	}
}

func (d *ServerDescriptor) configEntry() ServerConfig {
	return ServerConfig{
		Command:   d.Command,
		Args:      slices.Clone(d.Args),
		Env:       maps.Clone(d.Env),
		URL:       d.URL,
		AuthToken: d.AuthToken,
		Headers:   maps.Clone(d.Headers),
		ServerID:  d.ServerID,
	}
}

// registrationBody builds the per-server payload for POST /api/servers.
// URL-based servers have no launch spec and cannot be registered.
func (d *ServerDescriptor) registrationBody() (*routerapi.LaunchSpec, *ConfigError) {
	if d.Command == "" {
		return nil, &ConfigError{
			Op:     "register",
			Server: d.Name,
			Reason: "server has no command; URL-based servers cannot be registered",
		}
	}
	env := d.Env
	if env == nil {
		env = map[string]string{}
	}
	args := d.Args
	if args == nil {
		args = []string{}
	}
	return &routerapi.LaunchSpec{
		Command: d.Command,
		Args:    args,
		Env:     env,
	}, nil
}
