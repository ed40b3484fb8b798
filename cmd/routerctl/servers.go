package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServersCmd(flags *rootFlags, v *viper.Viper) *cobra.Command {
	serversCmd := &cobra.Command{
		Use:   "servers",
		Short: "Inspect and manage the router's servers",
	}
	serversCmd.AddCommand(
		newServersListCmd(flags, v),
		newServersRegisterCmd(flags, v),
		newServersStartCmd(flags, v),
	)
	return serversCmd
}

func newServersListCmd(flags *rootFlags, v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the servers the router knows about",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := buildClient(flags, v)
			if err != nil {
				return err
			}
			servers, err := client.RouterServers(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(servers)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS")
			for _, srv := range servers {
				fmt.Fprintf(w, "%s\t%s\t%s\n", srv.ID, srv.Name, srv.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw server list as JSON")
	return cmd
}

func newServersRegisterCmd(flags *rootFlags, v *viper.Viper) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a configured server with the router",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(flags, v)
			if err != nil {
				return err
			}
			id, err := client.RegisterServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s as %s\n", args[0], id)
			if save {
				if path := v.GetString("config"); path != "" {
					return client.SaveConfig(path)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write the resolved server id back to the config file")
	return cmd
}

func newServersStartCmd(flags *rootFlags, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a configured server, registering it first if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(flags, v)
			if err != nil {
				return err
			}
			if err := client.StartServer(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
			return nil
		},
	}
}
