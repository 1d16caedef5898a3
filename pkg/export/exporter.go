// Package export turns the catch collection into files: scoped CSV, JSON
// and XLSX exports for sharing, and a full-fidelity JSON backup that can be
// imported back into a store.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/catchlog/internal/atomicfile"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// Source is the part of the catch store the exporter reads and writes.
// *catchlog.Store satisfies it.
type Source interface {
	GetAll(ctx context.Context) []types.Catch
	GetByDateRange(ctx context.Context, start, end string) []types.Catch
	Add(ctx context.Context, n types.NewCatch) int64
}

// Sharer hands a produced file to something outside the process.
type Sharer interface {
	// Available reports whether sharing can be attempted.
	Available(ctx context.Context) bool

	// Share shares the file at path and returns where it went.
	Share(ctx context.Context, path string) (string, error)
}

// Format is a scoped export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// RangeKind selects which catches a scoped export covers.
type RangeKind string

const (
	RangeAll    RangeKind = "all"
	RangeMonth  RangeKind = "month"  // current calendar month
	RangeYear   RangeKind = "year"   // current calendar year
	RangeCustom RangeKind = "custom" // Start to End
)

// Range is a date-range selector. Start and End are used by RangeCustom
// only; a custom range missing either bound covers everything.
type Range struct {
	Kind  RangeKind
	Start time.Time
	End   time.Time
}

// Export errors.
var (
	ErrNoData        = errors.New("no catches to export")
	ErrUnknownFormat = errors.New("unknown export format")
	ErrUnknownRange  = errors.New("unknown date range")
)

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseRangeKind converts a range name to a RangeKind.
func ParseRangeKind(s string) (RangeKind, error) {
	switch k := RangeKind(s); k {
	case RangeAll, RangeMonth, RangeYear, RangeCustom:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
}

// Bounds resolves r against now into inclusive ISO bounds. Month and year
// run from local midnight of the first day to 23:59:59 of the last day in
// loc. ok is false when r covers everything.
func (r Range) Bounds(now time.Time, loc *time.Location) (start, end string, ok bool) {
	now = now.In(loc)
	var from, to time.Time
	switch r.Kind {
	case RangeMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		to = time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, loc)
	case RangeYear:
		from = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		to = time.Date(now.Year(), time.December, 31, 23, 59, 59, 0, loc)
	case RangeCustom:
		if r.Start.IsZero() || r.End.IsZero() {
			return "", "", false
		}
		from, to = r.Start, r.End
	default:
		return "", "", false
	}
	return types.FormatTimestamp(from), types.FormatTimestamp(to), true
}

// File describes a written export.
type File struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Format Format `json:"format"`
	Count  int    `json:"count"`
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithDir sets the directory files are written to. The default is the
// working directory.
func WithDir(dir string) Option {
	return func(e *Exporter) { e.dir = dir }
}

// WithClock sets the clock used for ranges, file names and exportDate.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.clock = now }
}

// WithLocation sets the time zone calendar ranges are computed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) { e.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithSharer sets the share target used by ShareFile.
func WithSharer(s Sharer) Option {
	return func(e *Exporter) { e.sharer = s }
}

// Exporter produces export and backup files from a Source.
type Exporter struct {
	src    Source
	dir    string
	clock  func() time.Time
	loc    *time.Location
	logger zerolog.Logger
	sharer Sharer
}

// New creates an Exporter over src.
func New(src Source, opts ...Option) *Exporter {
	e := &Exporter{
		src:    src,
		dir:    ".",
		clock:  time.Now,
		loc:    time.Local,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportData writes the catches selected by r in the given format to
// fishing_log_<date>.<ext> and returns the file. It returns ErrNoData and
// writes nothing when no catch matches.
func (e *Exporter) ExportData(ctx context.Context, format Format, r Range) (*File, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	now := e.clock()
	var catches []types.Catch
	if start, end, ok := r.Bounds(now, e.loc); ok {
		catches = e.src.GetByDateRange(ctx, start, end)
	} else {
		catches = e.src.GetAll(ctx)
	}
	if len(catches) == 0 {
		return nil, ErrNoData
	}

	name := fmt.Sprintf("fishing_log_%s.%s", now.UTC().Format(time.DateOnly), format)
	path := filepath.Join(e.dir, name)
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	var err error
	switch format {
	case FormatCSV:
		err = atomicfile.Write(path, func(w io.Writer) error { return writeCSV(w, catches) })
	case FormatJSON:
		err = atomicfile.Write(path, func(w io.Writer) error { return writeJSON(w, catches) })
	case FormatXLSX:
		err = atomicfile.Write(path, func(w io.Writer) error { return writeXLSX(w, catches) })
	}
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	e.logger.Info().Str("path", path).Int("count", len(catches)).Str("format", string(format)).Msg("export written")
	return &File{Path: path, Name: name, Format: format, Count: len(catches)}, nil
}

// ShareFile hands the file at path to the configured Sharer. shared is
// false, with no error, when no share target is available. Sharing is
// attempted once.
func (e *Exporter) ShareFile(ctx context.Context, path string) (location string, shared bool, err error) {
	if e.sharer == nil || !e.sharer.Available(ctx) {
		return "", false, nil
	}
	location, err = e.sharer.Share(ctx, path)
	if err != nil {
		return "", true, fmt.Errorf("sharing %s: %w", filepath.Base(path), err)
	}
	e.logger.Info().Str("path", path).Str("location", location).Msg("file shared")
	return location, true, nil
}
