// Package cli implements the catchlog command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/internal/paths"
	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by the root command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// app holds the global flag values and the settings loaded for one
// invocation.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	settings settings
	logger   zerolog.Logger
}

// NewRootCmd creates the top-level "catchlog" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "catchlog",
		Short: "A local fishing catch log",
		Long: "Catchlog records fishing catches, answers queries and statistics over them,\n" +
			"and exports them as CSV, JSON, spreadsheets or backups.",
		Version:           catchlog.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		a.newInitCmd(),
		a.newAddCmd(),
		a.newGetCmd(),
		a.newListCmd(),
		a.newUpdateCmd(),
		a.newDeleteCmd(),
		a.newFilterCmd(),
		a.newSearchCmd(),
		a.newTagsCmd(),
		a.newStatsCmd(),
		a.newMonthlyCmd(),
		a.newWeekdayCmd(),
		a.newExportCmd(),
		a.newBackupCmd(),
		a.newRestoreCmd(),
		a.newShareCmd(),
	)

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
