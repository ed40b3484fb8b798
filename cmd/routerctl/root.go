package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Wergmort/mcp-router-use/pkg/routeruse"
)

type rootFlags struct {
	configPath string
	routerURL  string
	authToken  string
	timeout    time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	v := viper.New()
	v.SetEnvPrefix("MCP_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "routerctl",
		Short:         "Manage MCP servers through a router",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a JSON configuration file")
	pf.StringVar(&flags.routerURL, "router-url", "", "router base URL (env MCP_ROUTER_ROUTER_URL)")
	pf.StringVar(&flags.authToken, "auth-token", "", "router bearer token (env MCP_ROUTER_AUTH_TOKEN)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-call timeout for router API requests")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	_ = v.BindPFlag("router_url", pf.Lookup("router-url"))
	_ = v.BindPFlag("auth_token", pf.Lookup("auth-token"))
	_ = v.BindPFlag("config", pf.Lookup("config"))

	rootCmd.AddCommand(
		newServersCmd(flags, v),
		newToolsCmd(flags, v),
	)
	return rootCmd
}

// buildClient assembles a client from the config file when one is given,
// layering flag and environment overrides on the router section.
func buildClient(flags *rootFlags, v *viper.Viper) (*routeruse.Client, error) {
	opts := &routeruse.Options{
		ClientName: "routerctl",
		Logger:     slog.Default(),
		Timeout:    flags.timeout,
	}

	var cfg *routeruse.Config
	if path := v.GetString("config"); path != "" {
		loaded, err := routeruse.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &routeruse.Config{}
	}
	if cfg.Router == nil {
		cfg.Router = &routeruse.RouterConfig{}
	}
	if url := v.GetString("router_url"); url != "" {
		cfg.Router.RouterURL = url
	}
	if token := v.GetString("auth_token"); token != "" {
		cfg.Router.AuthToken = token
	}
	if cfg.Router.RouterURL == "" {
		return nil, fmt.Errorf("no router URL: pass --router-url, set MCP_ROUTER_ROUTER_URL or provide a config file")
	}
	return routeruse.New(cfg, opts)
}
