package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL. Statements are idempotent so migrate can run on every Open.
const (
	createCatches = `CREATE TABLE IF NOT EXISTS catches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    species TEXT NOT NULL,
    weight REAL NOT NULL,
    latitude REAL,
    longitude REAL,
    locationName TEXT,
    dateTime TEXT NOT NULL,
    photoUri TEXT,
    photoUris TEXT,
    bait TEXT,
    weather TEXT,
    notes TEXT,
    tags TEXT,
    createdAt TEXT NOT NULL,
    updatedAt TEXT NOT NULL
);`

	idxCatchesDateTime = `CREATE INDEX IF NOT EXISTS idx_catches_dateTime ON catches(dateTime DESC);`
	idxCatchesSpecies  = `CREATE INDEX IF NOT EXISTS idx_catches_species ON catches(species);`
)

// addedColumns are nullable columns introduced after the first release.
// Tables created before them get the columns added in place.
var addedColumns = []struct {
	name       string
	definition string
}{
	{name: "photoUris", definition: "TEXT"},
	{name: "tags", definition: "TEXT"},
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxCatchesDateTime,
	idxCatchesSpecies,
}

// migrate brings the database to the current schema without touching
// existing rows.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createCatches); err != nil {
		return fmt.Errorf("creating catches table: %w", err)
	}
	for _, c := range addedColumns {
		if err := addColumnIfNotExists(ctx, db, "catches", c.name, c.definition); err != nil {
			return fmt.Errorf("adding column %s: %w", c.name, err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, definition string) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
