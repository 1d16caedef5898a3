// Package sqlite implements the relational catch backend on modernc.org/sqlite.
// One database file holds a single catches table; queries, ranges and
// aggregates run in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// DriverName is the database/sql driver this backend requires.
const DriverName = "sqlite"

// DBFileName is the database file created under the data directory.
const DBFileName = "fishing_log.db"

// Compile-time interface check.
var _ types.Backend = (*Backend)(nil)

// Backend implements types.Backend on a SQLite database file.
type Backend struct {
	mu      sync.RWMutex
	dataDir string
	db      *sql.DB
	open    bool
}

// NewBackend creates a SQLite backend storing its database under dataDir.
// The backend is not open; call Open to connect and migrate.
func NewBackend(dataDir string) *Backend {
	return &Backend{dataDir: dataDir}
}

// Path returns the database file path.
func (b *Backend) Path() string {
	dir := b.dataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DBFileName)
}

// Open creates the data directory if needed, opens the database in WAL mode
// and migrates the schema.
// Returns ErrAlreadyOpen if already open.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return types.ErrAlreadyOpen
	}

	path := b.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connecting to %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrating %s: %w", path, err)
	}

	b.db = db
	b.open = true
	return nil
}

// Close closes the database. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	b.open = false
	err := b.db.Close()
	b.db = nil
	return err
}
