package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// CatchesKey is the storage key holding the serialized collection.
const CatchesKey = "fishing_catches"

// Backend implements types.Backend over a Storage. Every mutation writes
// the full collection back; the in-memory list is only replaced once the
// write succeeds, so a failed write leaves no trace.
type Backend struct {
	mu      sync.RWMutex
	storage Storage
	open    bool
	catches []types.Catch // insertion order
	nextID  int64         // high-water mark; ids are never handed out twice
}

// NewBackend creates a kv backend over storage. The backend is not open;
// call Open to load the collection.
func NewBackend(storage Storage) *Backend {
	return &Backend{storage: storage}
}

// Open loads the collection blob. A missing key is an empty collection; a
// blob that does not decode is ErrMalformedBlob.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return types.ErrAlreadyOpen
	}

	data, err := b.storage.Load(ctx, CatchesKey)
	var catches []types.Catch
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("loading %s: %w", CatchesKey, err)
	default:
		if err := json.Unmarshal(data, &catches); err != nil {
			return fmt.Errorf("%w: %v", types.ErrMalformedBlob, err)
		}
	}

	b.catches = catches
	b.nextID = 1
	for _, c := range catches {
		if c.ID >= b.nextID {
			b.nextID = c.ID + 1
		}
	}
	b.open = true
	return nil
}

// Close closes the underlying storage. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	b.open = false
	b.catches = nil
	return b.storage.Close()
}

// persist writes next to storage and, on success, makes it the live list.
// The caller must hold b.mu.
func (b *Backend) persist(ctx context.Context, next []types.Catch) error {
	if next == nil {
		next = []types.Catch{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding catches: %w", err)
	}
	if err := b.storage.Save(ctx, CatchesKey, data); err != nil {
		return fmt.Errorf("saving %s: %w", CatchesKey, err)
	}
	b.catches = next
	return nil
}

// Add appends a new catch and persists the collection.
func (b *Backend) Add(ctx context.Context, n types.NewCatch, now string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return types.NoID, types.ErrNotOpen
	}

	id := b.nextID
	b.nextID++

	next := make([]types.Catch, len(b.catches), len(b.catches)+1)
	copy(next, b.catches)
	next = append(next, n.Build(id, now))
	if err := b.persist(ctx, next); err != nil {
		return types.NoID, err
	}
	return id, nil
}

// snapshot returns deep copies of the live list for which keep is true,
// ordered most recent first.
func (b *Backend) snapshot(keep func(types.Catch) bool) ([]types.Catch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return nil, types.ErrNotOpen
	}
	out := make([]types.Catch, 0, len(b.catches))
	for _, c := range b.catches {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	types.SortByDateTimeDesc(out)
	return out, nil
}

// All returns every catch.
func (b *Backend) All(ctx context.Context) ([]types.Catch, error) {
	return b.snapshot(func(types.Catch) bool { return true })
}

// Get returns the catch with the given id.
func (b *Backend) Get(ctx context.Context, id int64) (types.Catch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.Catch{}, types.ErrNotOpen
	}
	for _, c := range b.catches {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return types.Catch{}, types.ErrNotFound
}

// Update patches the catch with the given id and persists the collection.
func (b *Backend) Update(ctx context.Context, id int64, p types.CatchPatch, now string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return types.ErrNotOpen
	}
	for i, c := range b.catches {
		if c.ID != id {
			continue
		}
		next := make([]types.Catch, len(b.catches))
		copy(next, b.catches)
		patched := c.Clone()
		p.Apply(&patched, now)
		next[i] = patched
		return b.persist(ctx, next)
	}
	return nil
}

// Delete removes the catch with the given id and persists the collection.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return types.ErrNotOpen
	}
	for i, c := range b.catches {
		if c.ID != id {
			continue
		}
		next := make([]types.Catch, 0, len(b.catches)-1)
		next = append(next, b.catches[:i]...)
		next = append(next, b.catches[i+1:]...)
		return b.persist(ctx, next)
	}
	return nil
}

// Range returns catches with DateTime in [start, end].
func (b *Backend) Range(ctx context.Context, start, end string) ([]types.Catch, error) {
	return b.snapshot(func(c types.Catch) bool {
		return c.DateTime >= start && c.DateTime <= end
	})
}

// Stats computes the aggregate summary.
func (b *Backend) Stats(ctx context.Context) (types.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return types.Stats{}, types.ErrNotOpen
	}
	stats := types.ComputeStats(b.catches)
	if stats.BiggestCatch != nil {
		biggest := stats.BiggestCatch.Clone()
		stats.BiggestCatch = &biggest
	}
	return stats, nil
}

// Filter returns catches matching f.
func (b *Backend) Filter(ctx context.Context, f types.Filters) ([]types.Catch, error) {
	return b.snapshot(f.Match)
}

// Search returns catches matching query.
func (b *Backend) Search(ctx context.Context, query string) ([]types.Catch, error) {
	return b.snapshot(func(c types.Catch) bool { return types.MatchesQuery(c, query) })
}

// Tags returns the distinct tags, sorted.
func (b *Backend) Tags(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.open {
		return nil, types.ErrNotOpen
	}
	return types.DistinctTags(b.catches), nil
}
