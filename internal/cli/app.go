package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/internal/share"
	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
	"github.com/mesh-intelligence/catchlog/pkg/export"
)

var errStoreUnavailable = errors.New("catch store is unavailable")

// openStore creates and initializes the catch store. The caller must
// Close it. A store that comes up degraded is reported as a system error.
func (a *app) openStore(ctx context.Context) (*catchlog.Store, error) {
	store := catchlog.New(a.settings.store,
		catchlog.WithLogger(a.logger),
		catchlog.WithLocation(a.settings.loc),
	)
	store.Initialize(ctx)
	if store.Degraded() {
		_ = store.Close()
		return nil, sysError("%w (backend %s, data dir %s)",
			errStoreUnavailable, catchlog.ResolveBackend(a.settings.store), a.settings.store.DataDir)
	}
	return store, nil
}

// withStore opens the store, runs fn and closes the store.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *catchlog.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

// exporter builds an Exporter writing to dir, or to the configured export
// directory when dir is empty.
func (a *app) exporter(store *catchlog.Store, dir string) (*export.Exporter, error) {
	if dir == "" {
		dir = a.settings.exportDir
	}
	sharer, err := share.New(a.settings.share, a.logger)
	if err != nil {
		return nil, userError("share target: %w", err)
	}
	return export.New(store,
		export.WithDir(dir),
		export.WithLocation(a.settings.loc),
		export.WithLogger(a.logger),
		export.WithSharer(sharer),
	), nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return sysError("encode output: %w", err)
	}
	return nil
}

// output writes v as JSON in --json mode and calls text otherwise.
func (a *app) output(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	if a.jsonMode {
		return printJSON(cmd.OutOrStdout(), v)
	}
	text(cmd.OutOrStdout())
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, userError("invalid catch id %q", arg)
	}
	return id, nil
}

func notFound(id int64) error {
	return userError("catch %d not found", id)
}

func plural(n int, word string) string {
	switch {
	case n == 1:
		return fmt.Sprintf("%d %s", n, word)
	case strings.HasSuffix(word, "ch"):
		return fmt.Sprintf("%d %ses", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
