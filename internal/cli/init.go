package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
)

// initResult is the JSON output of init.
type initResult struct {
	Backend string `json:"backend"`
	DataDir string `json:"dataDir"`
	Catches int    `json:"catches"`
}

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize catchlog storage",
		Long:  "Create the configuration and data directories, then open the catch store once\nso its schema is in place.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				res := initResult{
					Backend: catchlog.ResolveBackend(a.settings.store),
					DataDir: a.settings.store.DataDir,
					Catches: len(store.GetAll(ctx)),
				}
				return a.output(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Catchlog initialized (%s backend, %s) in %s\n",
						res.Backend, plural(res.Catches, "catch"), res.DataDir)
				})
			})
		},
	}
}
