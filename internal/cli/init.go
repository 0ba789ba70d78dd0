package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tableside storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			c, err := storeConfig()
			if err != nil {
				return sysError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "tableside initialized")
			fmt.Fprintln(out, "  config:", cfg.ConfigFileUsed())
			fmt.Fprintln(out, "  data:  ", c.DataDir)
			return nil
		},
	}
}
