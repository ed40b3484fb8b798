package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newToolsCmd(flags *rootFlags, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tools <server>",
		Short: "Open a session to a configured server and list its tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(flags, v)
			if err != nil {
				return err
			}
			sess, err := client.CreateSession(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := client.CloseSession(args[0]); cerr != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "routerctl:", cerr)
				}
			}()

			tools := sess.Tools()
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tools")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, tool := range tools {
				fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
			}
			return w.Flush()
		},
	}
}
