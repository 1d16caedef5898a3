package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catchlog/pkg/types"
)

const now = "2024-05-01T12:00:00.000Z"

// flakyStorage wraps a Storage and fails Save while failSave is set.
type flakyStorage struct {
	Storage
	failSave bool
}

func (s *flakyStorage) Save(ctx context.Context, key string, value []byte) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.Storage.Save(ctx, key, value)
}

func openBackend(t *testing.T, s Storage) *Backend {
	t.Helper()
	b := NewBackend(s)
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "kv")

	first := NewBackend(NewFileStorage(dir))
	require.NoError(t, first.Open(ctx))
	id, err := first.Add(ctx, types.NewCatch{Species: "Bass", Weight: 2.5, DateTime: "2024-05-01T10:00:00Z", Tags: []string{"night"}}, now)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openBackend(t, NewFileStorage(dir))
	got, err := second.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bass", got.Species)
	assert.Equal(t, []string{"night"}, got.Tags)
	assert.Equal(t, now, got.CreatedAt)

	next, err := second.Add(ctx, types.NewCatch{Species: "Trout", Weight: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestBackend_OpenMalformedBlob(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Save(context.Background(), CatchesKey, []byte(`{"not":"a list"`)))

	err := NewBackend(s).Open(context.Background())
	assert.ErrorIs(t, err, types.ErrMalformedBlob)
}

func TestBackend_OpenTwice(t *testing.T) {
	b := openBackend(t, NewMemoryStorage())

	assert.ErrorIs(t, b.Open(context.Background()), types.ErrAlreadyOpen)
}

func TestBackend_NotOpen(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(NewMemoryStorage())

	_, err := b.All(ctx)
	assert.ErrorIs(t, err, types.ErrNotOpen)
	_, err = b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}, now)
	assert.ErrorIs(t, err, types.ErrNotOpen)
	assert.NoError(t, b.Close())
}

func TestBackend_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	b := openBackend(t, NewMemoryStorage())

	first, err := b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}, now)
	require.NoError(t, err)
	second, err := b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}, now)
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, second))

	third, err := b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Greater(t, third, second)
}

func TestBackend_FailedSaveLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	s := &flakyStorage{Storage: NewMemoryStorage()}
	b := openBackend(t, s)

	id, err := b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, Notes: strPtr("before")}, now)
	require.NoError(t, err)

	s.failSave = true
	_, err = b.Add(ctx, types.NewCatch{Species: "Trout", Weight: 1}, now)
	assert.Error(t, err)
	assert.Error(t, b.Update(ctx, id, types.CatchPatch{Notes: types.Some(strPtr("after"))}, now))
	assert.Error(t, b.Delete(ctx, id))

	all, err := b.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "before", *all[0].Notes)
}

func TestBackend_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := openBackend(t, NewMemoryStorage())
	id, err := b.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, Notes: strPtr("calm"), Tags: []string{"night"}}, now)
	require.NoError(t, err)

	got, err := b.Get(ctx, id)
	require.NoError(t, err)
	*got.Notes = "mutated"
	got.Tags[0] = "mutated"

	again, err := b.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "calm", *again.Notes)
	assert.Equal(t, []string{"night"}, again.Tags)
}

func strPtr(s string) *string { return &s }
