package routeruse

import (
	"errors"
	"fmt"
)

// ConfigError reports a problem with the client's configuration. It is
// always raised synchronously, before any network activity.
type ConfigError struct {
	Op     string // operation that rejected the configuration
	Server string // offending server name, when applicable
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Server != "" {
		return fmt.Sprintf("routeruse: %s: server %q: %s", e.Op, e.Server, e.Reason)
	}
	return fmt.Sprintf("routeruse: %s: %s", e.Op, e.Reason)
}

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
