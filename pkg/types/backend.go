package types

import (
	"context"
	"errors"
)

// Backend is a storage engine for the catch collection. The Store wraps a
// Backend, owns the initialize latch and degraded mode, and turns every
// Backend error into an empty result, so implementations simply return
// errors.
//
// Implementations must return the same results for the same collection:
// All, Range, Filter and Search order by DateTime descending then id
// descending, and Stats follows the tie-break rules of ComputeStats.
type Backend interface {
	// Open connects to the storage engine and prepares it for use.
	Open(ctx context.Context) error

	// Close releases resources. Close on an unopened backend returns nil.
	Close() error

	// Add persists n with the given timestamp and returns the assigned id.
	// Ids are greater than every id previously assigned by this backend.
	Add(ctx context.Context, n NewCatch, now string) (int64, error)

	// All returns every catch.
	All(ctx context.Context) ([]Catch, error)

	// Get returns the catch with the given id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Catch, error)

	// Update applies p to the catch with the given id. Unknown ids are not
	// an error.
	Update(ctx context.Context, id int64, p CatchPatch, now string) error

	// Delete removes the catch with the given id. Unknown ids are not an
	// error.
	Delete(ctx context.Context, id int64) error

	// Range returns catches whose DateTime lies in [start, end].
	Range(ctx context.Context, start, end string) ([]Catch, error)

	// Stats returns the aggregate summary.
	Stats(ctx context.Context) (Stats, error)

	// Filter returns catches matching f.
	Filter(ctx context.Context, f Filters) ([]Catch, error)

	// Search returns catches matching query per MatchesQuery.
	Search(ctx context.Context, query string) ([]Catch, error)

	// Tags returns the distinct tags, sorted.
	Tags(ctx context.Context) ([]string, error)
}

// Backend errors.
var (
	ErrNotFound      = errors.New("catch not found")
	ErrNotOpen       = errors.New("backend is not open")
	ErrAlreadyOpen   = errors.New("backend is already open")
	ErrMalformedBlob = errors.New("stored catch collection is malformed")
)
