package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
)

const modulePath = "github.com/mesh-intelligence/catchlog"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the catchlog version",
		// Printing the version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "catchlog v%s\nmodule: %s\n", catchlog.Version, modulePath)
			return nil
		},
	}
}
