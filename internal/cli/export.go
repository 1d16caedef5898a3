package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
	"github.com/mesh-intelligence/catchlog/pkg/export"
)

// exportResult is the JSON output of export and backup.
type exportResult struct {
	*export.File
	SharedTo string `json:"sharedTo,omitempty"`
}

func (a *app) newExportCmd() *cobra.Command {
	var (
		format, rangeName string
		from, to          string
		outDir            string
		shareIt           bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write catches to a CSV, JSON or spreadsheet file",
		Example: `  catchlog export --format xlsx --range year
  catchlog export --format csv --range custom --from 2024-05-01 --to 2024-05-31 --share`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return userError("%w", err)
			}
			kind, err := export.ParseRangeKind(rangeName)
			if err != nil {
				return userError("%w", err)
			}
			r := export.Range{Kind: kind}
			if kind == export.RangeCustom {
				if r.Start, r.End, err = a.customBounds(from, to); err != nil {
					return err
				}
			}

			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				ex, err := a.exporter(store, outDir)
				if err != nil {
					return err
				}
				file, err := ex.ExportData(ctx, f, r)
				if errors.Is(err, export.ErrNoData) {
					return userError("%w", err)
				}
				if err != nil {
					return sysError("export: %w", err)
				}
				return a.finishFile(ctx, cmd, ex, file, shareIt)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&format, "format", string(export.FormatCSV), "csv, json or xlsx")
	fl.StringVar(&rangeName, "range", string(export.RangeAll), "all, month, year or custom")
	fl.StringVar(&from, "from", "", "custom range start")
	fl.StringVar(&to, "to", "", "custom range end")
	fl.StringVar(&outDir, "out", "", "directory to write to (default: the configured export directory)")
	fl.BoolVar(&shareIt, "share", false, "hand the file to the configured share target")
	return cmd
}

// customBounds parses a custom export range. A missing bound yields the
// zero time, which selects every catch.
func (a *app) customBounds(from, to string) (start, end time.Time, err error) {
	if from != "" {
		if start, err = parseWhen(from, a.settings.loc, false); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to != "" {
		if end, err = parseWhen(to, a.settings.loc, true); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// finishFile optionally shares file and reports it.
func (a *app) finishFile(ctx context.Context, cmd *cobra.Command, ex *export.Exporter, file *export.File, shareIt bool) error {
	res := exportResult{File: file}
	if shareIt {
		location, shared, err := ex.ShareFile(ctx, file.Path)
		if err != nil {
			return sysError("%w", err)
		}
		if !shared {
			a.logger.Warn().Msg("no share target available, file kept locally")
		}
		res.SharedTo = location
	}
	return a.output(cmd, res, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %s to %s\n", plural(file.Count, "catch"), file.Path)
		if res.SharedTo != "" {
			fmt.Fprintf(w, "Shared: %s\n", res.SharedTo)
		}
	})
}

func (a *app) newBackupCmd() *cobra.Command {
	var (
		outDir  string
		stdout  bool
		shareIt bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a full backup of every catch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				ex, err := a.exporter(store, outDir)
				if err != nil {
					return err
				}
				if stdout {
					data, err := ex.ExportBackup(ctx)
					if err != nil {
						return sysError("backup: %w", err)
					}
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				file, err := ex.WriteBackup(ctx)
				if err != nil {
					return sysError("backup: %w", err)
				}
				return a.finishFile(ctx, cmd, ex, file, shareIt)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&outDir, "out", "", "directory to write to (default: the configured export directory)")
	fl.BoolVar(&stdout, "stdout", false, "print the backup instead of writing a file")
	fl.BoolVar(&shareIt, "share", false, "hand the file to the configured share target")
	cmd.MarkFlagsMutuallyExclusive("stdout", "share")
	return cmd
}

func (a *app) newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Add every catch from a backup file",
		Long: "Restore appends the catches in a backup to the log with new ids.\n" +
			"Restoring the same backup twice adds its catches twice.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				ex, err := a.exporter(store, "")
				if err != nil {
					return err
				}
				res := ex.ImportFile(ctx, args[0])
				if err := a.output(cmd, res, func(w io.Writer) {
					if res.Success {
						fmt.Fprintf(w, "Restored %s\n", plural(res.Imported, "catch"))
					}
				}); err != nil {
					return err
				}
				if !res.Success {
					return userError("restore %s: %s", args[0], res.Error)
				}
				return nil
			})
		},
	}
}

func (a *app) newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <file>",
		Short: "Hand an exported file to the configured share target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Sharing does not touch the store.
			ex, err := a.exporter(nil, "")
			if err != nil {
				return err
			}
			location, shared, err := ex.ShareFile(cmd.Context(), args[0])
			if err != nil {
				return sysError("%w", err)
			}
			if !shared {
				return userError("sharing is not available: set share.target in config.yaml")
			}
			return a.output(cmd, map[string]string{"sharedTo": location}, func(w io.Writer) {
				fmt.Fprintf(w, "Shared: %s\n", location)
			})
		},
	}
}
