package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/catchlog/internal/atomicfile"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// BackupVersion is written to the version field of every backup.
const BackupVersion = "1.0.0"

// Backup is the full-fidelity backup envelope.
type Backup struct {
	Version    string        `json:"version"`
	ExportDate string        `json:"exportDate"`
	CatchCount int           `json:"catchCount"`
	Catches    []types.Catch `json:"catches"`
}

// ImportResult reports the outcome of ImportBackup.
type ImportResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Error    string `json:"error,omitempty"`
}

func (e *Exporter) backup(ctx context.Context) Backup {
	catches := e.src.GetAll(ctx)
	return Backup{
		Version:    BackupVersion,
		ExportDate: types.FormatTimestamp(e.clock()),
		CatchCount: len(catches),
		Catches:    catches,
	}
}

func encodeBackup(b Backup) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return data, nil
}

// ExportBackup serializes every catch with all of its fields.
func (e *Exporter) ExportBackup(ctx context.Context) ([]byte, error) {
	return encodeBackup(e.backup(ctx))
}

// WriteBackup writes ExportBackup to fishing_log_backup_<date>.json.
func (e *Exporter) WriteBackup(ctx context.Context) (*File, error) {
	b := e.backup(ctx)
	data, err := encodeBackup(b)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("fishing_log_backup_%s.json", e.clock().UTC().Format(time.DateOnly))
	path := filepath.Join(e.dir, name)
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	if err := atomicfile.WriteFile(path, data); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	e.logger.Info().Str("path", path).Int("count", b.CatchCount).Msg("backup written")
	return &File{Path: path, Name: name, Format: FormatJSON, Count: b.CatchCount}, nil
}

// backupCatch lists the fields import accepts. Anything else in an entry is
// dropped; id and timestamps are reassigned by the store.
type backupCatch struct {
	Species      string         `json:"species"`
	Weight       float64        `json:"weight"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	LocationName *string        `json:"locationName"`
	DateTime     string         `json:"dateTime"`
	PhotoURI     *string        `json:"photoUri"`
	PhotoURIs    []string       `json:"photoUris"`
	Bait         *string        `json:"bait"`
	Weather      *types.Weather `json:"weather"`
	Notes        *string        `json:"notes"`
	Tags         []string       `json:"tags"`
}

func (b backupCatch) newCatch() types.NewCatch {
	return types.NewCatch{
		Species:      b.Species,
		Weight:       b.Weight,
		Latitude:     b.Latitude,
		Longitude:    b.Longitude,
		LocationName: b.LocationName,
		DateTime:     b.DateTime,
		PhotoURI:     b.PhotoURI,
		PhotoURIs:    b.PhotoURIs,
		Bait:         b.Bait,
		Weather:      b.Weather,
		Notes:        b.Notes,
		Tags:         b.Tags,
	}
}

func failedImport(format string, args ...any) ImportResult {
	return ImportResult{Success: false, Imported: 0, Error: fmt.Sprintf(format, args...)}
}

// ImportBackup adds every catch in a backup envelope to the store as a new
// record. The envelope must be an object with a catches array. Entries that
// are not objects are skipped, and fields of the wrong type are left at
// their zero value. Imported counts the adds that succeeded. Records are
// never deduplicated.
func (e *Exporter) ImportBackup(ctx context.Context, data []byte) ImportResult {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return failedImport("invalid backup file: %v", err)
	}
	raw, ok := envelope["catches"]
	if !ok {
		return failedImport("invalid backup file: missing catches")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return failedImport("invalid backup file: catches is not an array")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return failedImport("invalid backup file: %v", err)
	}

	imported := 0
	for i, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			e.logger.Warn().Int("index", i).Msg("skipping backup entry that is not an object")
			continue
		}
		var bc backupCatch
		if err := json.Unmarshal(entry, &bc); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				e.logger.Warn().Err(err).Int("index", i).Msg("skipping unreadable backup entry")
				continue
			}
			e.logger.Debug().Err(err).Int("index", i).Msg("backup entry has mistyped fields")
		}
		if e.src.Add(ctx, bc.newCatch()) != types.NoID {
			imported++
		}
	}

	e.logger.Info().Int("imported", imported).Int("entries", len(entries)).Msg("backup imported")
	return ImportResult{Success: true, Imported: imported}
}

// ImportFile reads a backup file and imports it.
func (e *Exporter) ImportFile(ctx context.Context, path string) ImportResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return failedImport("reading backup: %v", err)
	}
	return e.ImportBackup(ctx, data)
}
