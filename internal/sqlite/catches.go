package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/catchlog/pkg/types"
)

const catchColumns = "id, species, weight, latitude, longitude, locationName, dateTime, photoUri, photoUris, bait, weather, notes, tags, createdAt, updatedAt"

// orderRecentFirst is the ordering shared by every list query.
const orderRecentFirst = " ORDER BY dateTime DESC, id DESC"

// Add inserts n and returns the id SQLite assigned. AUTOINCREMENT keeps ids
// of deleted rows from being handed out again.
func (b *Backend) Add(ctx context.Context, n types.NewCatch, now string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.NoID, types.ErrNotOpen
	}

	photoURIs, err := encodeList(n.PhotoURIs)
	if err != nil {
		return types.NoID, err
	}
	tags, err := encodeList(n.Tags)
	if err != nil {
		return types.NoID, err
	}

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO catches (species, weight, latitude, longitude, locationName, dateTime, photoUri, photoUris, bait, weather, notes, tags, createdAt, updatedAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Species, n.Weight, nullable(n.Latitude), nullable(n.Longitude), nullable(n.LocationName),
		n.DateTime, nullable(n.PhotoURI), photoURIs, nullable(n.Bait), weatherValue(n.Weather),
		nullable(n.Notes), tags, now, now,
	)
	if err != nil {
		return types.NoID, fmt.Errorf("inserting catch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.NoID, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// All returns every catch, most recent first.
func (b *Backend) All(ctx context.Context) ([]types.Catch, error) {
	return b.list(ctx, "")
}

// Get returns the catch with the given id.
func (b *Backend) Get(ctx context.Context, id int64) (types.Catch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.Catch{}, types.ErrNotOpen
	}

	row := b.db.QueryRowContext(ctx, "SELECT "+catchColumns+" FROM catches WHERE id = ?", id)
	c, err := scanCatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Catch{}, types.ErrNotFound
	}
	if err != nil {
		return types.Catch{}, fmt.Errorf("getting catch %d: %w", id, err)
	}
	return c, nil
}

// Update writes the Set fields of p and refreshes updatedAt. Unknown ids
// update no rows.
func (b *Backend) Update(ctx context.Context, id int64, p types.CatchPatch, now string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.ErrNotOpen
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if p.Species.Set {
		set("species", p.Species.Value)
	}
	if p.Weight.Set {
		set("weight", p.Weight.Value)
	}
	if p.Latitude.Set {
		set("latitude", nullable(p.Latitude.Value))
	}
	if p.Longitude.Set {
		set("longitude", nullable(p.Longitude.Value))
	}
	if p.LocationName.Set {
		set("locationName", nullable(p.LocationName.Value))
	}
	if p.DateTime.Set {
		set("dateTime", p.DateTime.Value)
	}
	if p.PhotoURI.Set {
		set("photoUri", nullable(p.PhotoURI.Value))
	}
	if p.PhotoURIs.Set {
		v, err := encodeList(p.PhotoURIs.Value)
		if err != nil {
			return err
		}
		set("photoUris", v)
	}
	if p.Bait.Set {
		set("bait", nullable(p.Bait.Value))
	}
	if p.Weather.Set {
		set("weather", weatherValue(p.Weather.Value))
	}
	if p.Notes.Set {
		set("notes", nullable(p.Notes.Value))
	}
	if p.Tags.Set {
		v, err := encodeList(p.Tags.Value)
		if err != nil {
			return err
		}
		set("tags", v)
	}
	set("updatedAt", now)
	args = append(args, id)

	query := "UPDATE catches SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating catch %d: %w", id, err)
	}
	return nil
}

// Delete removes the catch with the given id.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.ErrNotOpen
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM catches WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting catch %d: %w", id, err)
	}
	return nil
}

// Range returns catches with dateTime in [start, end].
func (b *Backend) Range(ctx context.Context, start, end string) ([]types.Catch, error) {
	return b.list(ctx, " WHERE dateTime >= ? AND dateTime <= ?", start, end)
}

// Stats computes the summary in SQL. Ties go to the lowest id, matching
// types.ComputeStats.
func (b *Backend) Stats(ctx context.Context) (types.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.Stats{}, types.ErrNotOpen
	}

	var stats types.Stats
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catches").Scan(&stats.TotalCatches); err != nil {
		return types.Stats{}, fmt.Errorf("counting catches: %w", err)
	}
	if stats.TotalCatches == 0 {
		return stats, nil
	}

	row := b.db.QueryRowContext(ctx, "SELECT "+catchColumns+" FROM catches ORDER BY weight DESC, id ASC LIMIT 1")
	biggest, err := scanCatch(row)
	if err != nil {
		return types.Stats{}, fmt.Errorf("finding biggest catch: %w", err)
	}
	stats.BiggestCatch = &biggest

	var top types.SpeciesCount
	err = b.db.QueryRowContext(ctx,
		"SELECT species, COUNT(*) FROM catches GROUP BY species ORDER BY COUNT(*) DESC, MIN(id) ASC LIMIT 1",
	).Scan(&top.Species, &top.Count)
	if err != nil {
		return types.Stats{}, fmt.Errorf("finding top species: %w", err)
	}
	stats.TopSpecies = &top
	return stats, nil
}

// Filter narrows by weight, date and weather in SQL, then applies f.Match
// for the case-folded species and tag constraints.
func (b *Backend) Filter(ctx context.Context, f types.Filters) ([]types.Catch, error) {
	var (
		conds []string
		args  []any
	)
	if f.MinWeight != nil {
		conds = append(conds, "weight >= ?")
		args = append(args, *f.MinWeight)
	}
	if f.MaxWeight != nil {
		conds = append(conds, "weight <= ?")
		args = append(args, *f.MaxWeight)
	}
	if f.StartDate != "" {
		conds = append(conds, "dateTime >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		conds = append(conds, "dateTime <= ?")
		args = append(args, f.EndDate)
	}
	if f.Weather != "" {
		conds = append(conds, "weather = ?")
		args = append(args, string(f.Weather))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	catches, err := b.list(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	return types.Select(catches, f.Match), nil
}

// Search returns catches matching query.
func (b *Backend) Search(ctx context.Context, query string) ([]types.Catch, error) {
	catches, err := b.list(ctx, "")
	if err != nil {
		return nil, err
	}
	return types.Select(catches, func(c types.Catch) bool {
		return types.MatchesQuery(c, query)
	}), nil
}

// Tags expands the JSON tag arrays with json_each and returns the distinct
// values in byte order. Rows whose tags column is not valid JSON are skipped.
func (b *Backend) Tags(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return nil, types.ErrNotOpen
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT DISTINCT j.value
		 FROM catches, json_each(CASE WHEN json_valid(catches.tags) THEN catches.tags ELSE '[]' END) AS j
		 WHERE j.type = 'text'
		 ORDER BY j.value`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// list runs a SELECT over catches with an optional WHERE clause, most recent
// first.
func (b *Backend) list(ctx context.Context, where string, args ...any) ([]types.Catch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return nil, types.ErrNotOpen
	}

	rows, err := b.db.QueryContext(ctx, "SELECT "+catchColumns+" FROM catches"+where+orderRecentFirst, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catches: %w", err)
	}
	defer rows.Close()

	catches := []types.Catch{}
	for rows.Next() {
		c, err := scanCatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catch: %w", err)
		}
		catches = append(catches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying catches: %w", err)
	}
	return catches, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCatch hydrates a row selected with catchColumns.
func scanCatch(row rowScanner) (types.Catch, error) {
	var c types.Catch
	var latitude, longitude sql.NullFloat64
	var locationName, photoURI, photoURIs, bait, weather, notes, tags sql.NullString
	err := row.Scan(
		&c.ID, &c.Species, &c.Weight, &latitude, &longitude, &locationName,
		&c.DateTime, &photoURI, &photoURIs, &bait, &weather, &notes, &tags,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return types.Catch{}, err
	}

	c.Latitude = floatPtr(latitude)
	c.Longitude = floatPtr(longitude)
	c.LocationName = stringPtr(locationName)
	c.PhotoURI = stringPtr(photoURI)
	c.PhotoURIs = decodeList(photoURIs)
	c.Bait = stringPtr(bait)
	if weather.Valid {
		w := types.Weather(weather.String)
		c.Weather = &w
	}
	c.Notes = stringPtr(notes)
	c.Tags = decodeList(tags)
	return c, nil
}

// nullable converts an optional value to a driver argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func weatherValue(w *types.Weather) any {
	if w == nil {
		return nil
	}
	return string(*w)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

// encodeList stores a list column as JSON text; nil is stored as NULL.
func encodeList(list []string) (any, error) {
	if list == nil {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding list: %w", err)
	}
	return string(data), nil
}

// decodeList reads a JSON text list column. NULL and text that is not a
// JSON string array both read as no list.
func decodeList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(v.String), &list); err != nil {
		return nil
	}
	return list
}
