package catchlog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catchlog/internal/kv"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// backends returns a constructor for a fresh Store on each backend.
func backends() map[string]func(t *testing.T) *Store {
	return map[string]func(t *testing.T) *Store{
		"sqlite": func(t *testing.T) *Store {
			cfg := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
			return newTestStore(t, cfg)
		},
		"kv": func(t *testing.T) *Store {
			cfg := types.Config{Backend: types.BackendKV, KV: types.KVConfig{Driver: types.KVDriverMemory}}
			return newTestStore(t, cfg)
		},
	}
}

func newTestStore(t *testing.T, cfg types.Config, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(newStepClock().Now), WithLocation(time.UTC)}, opts...)
	s := New(cfg, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs fn as a subtest against every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func species(catches []types.Catch) []string {
	out := make([]string, 0, len(catches))
	for _, c := range catches {
		out = append(out, c.Species)
	}
	return out
}

func addScenario(t *testing.T, s *Store) (bass1, trout, bass2 int64) {
	t.Helper()
	ctx := context.Background()
	bass1 = s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 2.5, DateTime: "2024-05-01T10:00:00Z"})
	trout = s.Add(ctx, types.NewCatch{Species: "Trout", Weight: 1.1, DateTime: "2024-05-03T09:00:00Z"})
	bass2 = s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 4.0, DateTime: "2024-05-02T08:00:00Z"})
	require.NotEqual(t, types.NoID, bass1)
	require.NotEqual(t, types.NoID, trout)
	require.NotEqual(t, types.NoID, bass2)
	return bass1, trout, bass2
}

func TestStore_Scenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, _, bass2 := addScenario(t, s)

		all := s.GetAll(ctx)
		assert.Equal(t, []string{"Trout", "Bass", "Bass"}, species(all))
		assert.Equal(t, 4.0, all[1].Weight)
		assert.Equal(t, 2.5, all[2].Weight)

		stats := s.GetStats(ctx)
		assert.Equal(t, 3, stats.TotalCatches)
		require.NotNil(t, stats.BiggestCatch)
		assert.Equal(t, bass2, stats.BiggestCatch.ID)
		assert.Equal(t, "Bass", stats.BiggestCatch.Species)
		assert.Equal(t, 4.0, stats.BiggestCatch.Weight)
		require.NotNil(t, stats.TopSpecies)
		assert.Equal(t, types.SpeciesCount{Species: "Bass", Count: 2}, *stats.TopSpecies)

		bass := s.FilterCatches(ctx, types.Filters{Species: "Bass"})
		assert.Equal(t, []string{"Bass", "Bass"}, species(bass))
	})
}

func TestStore_IDsUniqueAndIncreasing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var last int64
		for i := 0; i < 5; i++ {
			id := s.Add(ctx, types.NewCatch{Species: "Perch", Weight: 0.3, DateTime: "2024-05-01T10:00:00Z"})
			assert.Greater(t, id, last)
			last = id
			if i == 2 {
				s.Delete(ctx, id)
			}
		}
		assert.Len(t, s.GetAll(ctx), 4)
	})
}

func TestStore_AddStampsTimestamps(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id := s.Add(ctx, types.NewCatch{Species: "Pike", Weight: 3, DateTime: "2024-05-01T10:00:00Z"})

		got, ok := s.GetByID(ctx, id)
		require.True(t, ok)
		assert.Equal(t, got.CreatedAt, got.UpdatedAt)
		_, err := time.Parse(types.TimestampLayout, got.CreatedAt)
		assert.NoError(t, err)

		_, ok = s.GetByID(ctx, id+100)
		assert.False(t, ok)
	})
}

func TestStore_UpdateIsPartialPatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id := s.Add(ctx, types.NewCatch{
			Species:      "Zander",
			Weight:       2.2,
			Latitude:     ptr(52.1),
			Longitude:    ptr(5.2),
			LocationName: ptr("Dock"),
			DateTime:     "2024-05-01T10:00:00Z",
			Bait:         ptr("shad"),
			Weather:      ptr(types.WeatherCloudy),
			Tags:         []string{"dusk"},
		})
		before, ok := s.GetByID(ctx, id)
		require.True(t, ok)

		s.Update(ctx, id, types.CatchPatch{Notes: types.Some(ptr("x"))})

		after, ok := s.GetByID(ctx, id)
		require.True(t, ok)
		assert.Equal(t, "x", *after.Notes)
		assert.NotEqual(t, before.UpdatedAt, after.UpdatedAt)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)

		after.Notes = before.Notes
		after.UpdatedAt = before.UpdatedAt
		assert.Equal(t, before, after, "only notes and updatedAt may change")
	})
}

func TestStore_UpdateWithoutChangesRefreshesUpdatedAt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		id := s.Add(ctx, types.NewCatch{Species: "Ide", Weight: 1, DateTime: "2024-05-01T10:00:00Z"})
		before, _ := s.GetByID(ctx, id)

		s.Update(ctx, id, types.CatchPatch{})

		after, _ := s.GetByID(ctx, id)
		assert.Greater(t, after.UpdatedAt, before.UpdatedAt)
	})
}

func TestStore_UnknownIDsAreNoops(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		addScenario(t, s)

		s.Update(ctx, 999, types.CatchPatch{Species: types.Some("Ghost")})
		s.Delete(ctx, 999)

		all := s.GetAll(ctx)
		assert.Len(t, all, 3)
		assert.NotContains(t, species(all), "Ghost")
	})
}

func TestStore_OrderingInvariant(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for _, dt := range []string{
			"2024-03-01T10:00:00Z",
			"2024-01-01T10:00:00Z",
			"2024-04-01T10:00:00Z",
			"2024-02-01T10:00:00Z",
		} {
			s.Add(ctx, types.NewCatch{Species: "Roach", Weight: 0.2, DateTime: dt})
		}
		s.Add(ctx, types.NewCatch{Species: "Roach", Weight: 0.2, DateTime: "2024-02-15T10:00:00Z"})

		all := s.GetAll(ctx)
		require.Len(t, all, 5)
		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i-1].DateTime, all[i].DateTime)
		}
	})
}

func TestStore_GetByDateRange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		addScenario(t, s)

		got := s.GetByDateRange(ctx, "2024-05-02T08:00:00Z", "2024-05-03T09:00:00Z")
		assert.Equal(t, []string{"Trout", "Bass"}, species(got))

		none := s.GetByDateRange(ctx, "2023-01-01T00:00:00Z", "2023-12-31T23:59:59Z")
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestStore_FilterConjunction(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sunny := ptr(types.WeatherSunny)
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z", Weather: sunny})
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 2, DateTime: "2024-05-02T10:00:00Z", Weather: ptr(types.WeatherRainy)})
		s.Add(ctx, types.NewCatch{Species: "Trout", Weight: 3, DateTime: "2024-05-03T10:00:00Z", Weather: sunny})
		s.Add(ctx, types.NewCatch{Species: "bass", Weight: 4, DateTime: "2024-05-04T10:00:00Z"})

		got := s.FilterCatches(ctx, types.Filters{Species: "Bass", Weather: types.WeatherSunny})
		require.Len(t, got, 1)
		assert.Equal(t, 1.0, got[0].Weight)

		assert.Len(t, s.FilterCatches(ctx, types.Filters{}), 4)
		assert.Len(t, s.FilterCatches(ctx, types.Filters{Species: "BASS"}), 3)
	})
}

func TestStore_SearchCatches(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z", LocationName: ptr("Mill Pond")})
		s.Add(ctx, types.NewCatch{Species: "Trout", Weight: 1, DateTime: "2024-05-02T10:00:00Z", Notes: ptr("near the POND inlet")})
		s.Add(ctx, types.NewCatch{Species: "Carp", Weight: 1, DateTime: "2024-05-03T10:00:00Z", Tags: []string{"boat"}})

		assert.Equal(t, []string{"Trout", "Bass"}, species(s.SearchCatches(ctx, "pond")))
		assert.Equal(t, []string{"Carp"}, species(s.SearchCatches(ctx, "BOA")))
		assert.Len(t, s.SearchCatches(ctx, "   "), 3)
		assert.Empty(t, s.SearchCatches(ctx, "pike"))
	})
}

func TestStore_StatsOnEmptyStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		stats := s.GetStats(context.Background())
		assert.Equal(t, 0, stats.TotalCatches)
		assert.Nil(t, stats.BiggestCatch)
		assert.Nil(t, stats.TopSpecies)
	})
}

func TestStore_GetAllTags(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		assert.Equal(t, []string{}, s.GetAllTags(ctx))

		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z", Tags: []string{"night"}})
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-02T10:00:00Z", Tags: []string{"night", "boat"}})
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-03T10:00:00Z", Tags: []string{}})

		assert.Equal(t, []string{"boat", "night"}, s.GetAllTags(ctx))
	})
}

func TestStore_MonthlyAndWeekdayStats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		assert.Empty(t, s.GetMonthlyStats(ctx))
		assert.Equal(t, types.WeekdayStats{}, s.GetWeekdayStats(ctx))

		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 0.1, DateTime: "2024-05-05T10:00:00Z"}) // Sunday
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 0.2, DateTime: "2024-05-06T10:00:00Z"}) // Monday
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1.0, DateTime: "2024-03-09T10:00:00Z"}) // Saturday

		assert.Equal(t, []types.MonthlyStat{
			{Month: "2024-03", Count: 1, TotalWeight: 1.0},
			{Month: "2024-05", Count: 2, TotalWeight: 0.3},
		}, s.GetMonthlyStats(ctx))
		assert.Equal(t, types.WeekdayStats{1, 1, 0, 0, 0, 0, 1}, s.GetWeekdayStats(ctx))
	})
}

func TestStore_StatsCountFloatingDateTimes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z"}) // Wednesday
		s.Add(ctx, types.NewCatch{Species: "Pike", Weight: 2, DateTime: "2024-06-01"})           // Saturday
		s.Add(ctx, types.NewCatch{Species: "Perch", Weight: 3, DateTime: "2024-06-02T10:00:00"}) // Sunday

		assert.Equal(t, 3, s.GetStats(ctx).TotalCatches)
		assert.Equal(t, []types.MonthlyStat{
			{Month: "2024-05", Count: 1, TotalWeight: 1},
			{Month: "2024-06", Count: 2, TotalWeight: 5},
		}, s.GetMonthlyStats(ctx))
		assert.Equal(t, types.WeekdayStats{1, 0, 0, 1, 0, 0, 1}, s.GetWeekdayStats(ctx))
	})
}

func TestStore_FilterTagsIgnoreCase(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z", Tags: []string{"Night"}})
		s.Add(ctx, types.NewCatch{Species: "Pike", Weight: 2, DateTime: "2024-05-02T10:00:00Z", Tags: []string{"boat"}})

		assert.Equal(t, []string{"Bass"}, species(s.FilterCatches(ctx, types.Filters{Tags: []string{"Night"}})))
		assert.Equal(t, []string{"Pike"}, species(s.FilterCatches(ctx, types.Filters{Tags: []string{"BOAT "}})))
	})
}

func TestStore_InitializeIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		s.Initialize(ctx)
		id := s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z"})
		s.Initialize(ctx)

		_, ok := s.GetByID(ctx, id)
		assert.True(t, ok)
		assert.False(t, s.Degraded())
	})
}

func TestStore_ConcurrentAdds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		ids := make([]int64, 20)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z"})
			}(i)
		}
		wg.Wait()

		seen := make(map[int64]bool)
		for _, id := range ids {
			assert.NotEqual(t, types.NoID, id)
			assert.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
		}
		assert.Len(t, s.GetAll(ctx), len(ids))
	})
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(dir string) types.Config
	}{
		{
			name: "sqlite",
			cfg: func(dir string) types.Config {
				return types.Config{Backend: types.BackendSQLite, DataDir: dir}
			},
		},
		{
			name: "kv file",
			cfg: func(dir string) types.Config {
				return types.Config{Backend: types.BackendKV, DataDir: dir, KV: types.KVConfig{Driver: types.KVDriverFile}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			first := New(tt.cfg(dir))
			id := first.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z", Tags: []string{"night"}})
			require.NotEqual(t, types.NoID, id)
			require.NoError(t, first.Close())

			second := newTestStore(t, tt.cfg(dir))
			got, ok := second.GetByID(ctx, id)
			require.True(t, ok)
			assert.Equal(t, []string{"night"}, got.Tags)
		})
	}
}

// degradedStores returns stores whose initialization fails.
func degradedStores(t *testing.T, logger zerolog.Logger) map[string]*Store {
	t.Helper()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	malformed := kv.NewMemoryStorage()
	require.NoError(t, malformed.Save(context.Background(), kv.CatchesKey, []byte("{oops")))

	return map[string]*Store{
		"sqlite under a regular file": newTestStore(t,
			types.Config{Backend: types.BackendSQLite, DataDir: filepath.Join(file, "data")},
			WithLogger(logger)),
		"kv malformed blob": newTestStore(t,
			types.Config{Backend: types.BackendKV},
			WithKVStorage(malformed), WithLogger(logger)),
		"invalid config": newTestStore(t,
			types.Config{Backend: "cloud"},
			WithLogger(logger)),
	}
}

func TestStore_DegradedMode(t *testing.T) {
	var buf bytes.Buffer
	for name, s := range degradedStores(t, zerolog.New(&buf)) {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			ctx := context.Background()

			assert.Equal(t, types.NoID, s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1, DateTime: "2024-05-01T10:00:00Z"}))
			assert.Equal(t, []types.Catch{}, s.GetAll(ctx))
			s.Update(ctx, 1, types.CatchPatch{Notes: types.Some(ptr("x"))})
			s.Delete(ctx, 1)
			_, ok := s.GetByID(ctx, 1)
			assert.False(t, ok)
			assert.Equal(t, types.Stats{}, s.GetStats(ctx))
			assert.Empty(t, s.GetByDateRange(ctx, "2024-01-01", "2024-12-31"))
			assert.Empty(t, s.FilterCatches(ctx, types.Filters{}))
			assert.Empty(t, s.SearchCatches(ctx, ""))
			assert.Equal(t, []string{}, s.GetAllTags(ctx))
			assert.Empty(t, s.GetMonthlyStats(ctx))
			assert.Equal(t, types.WeekdayStats{}, s.GetWeekdayStats(ctx))

			assert.True(t, s.Degraded())
			assert.Equal(t, 1, strings.Count(buf.String(), "running degraded"), "failure is logged once")
		})
	}
}

// failingStorage loads fine but never saves.
type failingStorage struct {
	*kv.MemoryStorage
}

func (failingStorage) Save(context.Context, string, []byte) error {
	return os.ErrPermission
}

func TestStore_WriteFailureReturnsNoID(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(t,
		types.Config{Backend: types.BackendKV},
		WithKVStorage(failingStorage{kv.NewMemoryStorage()}), WithLogger(zerolog.New(&buf)))
	ctx := context.Background()

	assert.Equal(t, types.NoID, s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}))
	assert.Empty(t, s.GetAll(ctx))
	assert.False(t, s.Degraded())
	assert.Contains(t, buf.String(), "add catch failed")
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	s := New(types.Config{Backend: types.BackendKV, KV: types.KVConfig{Driver: types.KVDriverMemory}})
	s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1})

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Empty(t, s.GetAll(ctx))
	assert.Equal(t, types.NoID, s.Add(ctx, types.NewCatch{Species: "Bass", Weight: 1}))
}

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.Config
		want string
	}{
		{name: "explicit sqlite", cfg: types.Config{Backend: types.BackendSQLite}, want: types.BackendSQLite},
		{name: "explicit kv", cfg: types.Config{Backend: types.BackendKV, DataDir: "/tmp/x"}, want: types.BackendKV},
		{name: "auto with data dir", cfg: types.Config{Backend: types.BackendAuto, DataDir: "/tmp/x"}, want: types.BackendSQLite},
		{name: "auto without data dir", cfg: types.Config{Backend: types.BackendAuto}, want: types.BackendKV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBackend(tt.cfg))
		})
	}
}
