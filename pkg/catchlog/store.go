// Package catchlog is the catch store: CRUD, filtering, search, tags and
// aggregate statistics over the Catch collection, backed by either the
// SQLite backend or the key-value snapshot backend.
//
// Store operations never return errors. A store whose backend cannot be
// initialized runs degraded: reads return empty results, writes do nothing
// and Add returns types.NoID. Failures of individual operations are logged
// and turned into the same empty results.
package catchlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/catchlog/internal/kv"
	"github.com/mesh-intelligence/catchlog/internal/sqlite"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the source of createdAt and updatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

// WithLocation sets the time zone used to bucket monthly and weekday
// statistics. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithKVStorage makes the kv backend use storage instead of the driver
// named in the config.
func WithKVStorage(storage kv.Storage) Option {
	return func(s *Store) { s.kvStorage = storage }
}

// WithBackend bypasses backend selection and uses b.
func WithBackend(b types.Backend) Option {
	return func(s *Store) { s.backend = b }
}

// Store is the catch store. It is safe for concurrent use; reads run in
// parallel and each write completes its persist cycle before the next
// operation starts.
type Store struct {
	cfg       types.Config
	logger    zerolog.Logger
	clock     func() time.Time
	loc       *time.Location
	kvStorage kv.Storage

	initMu      sync.Mutex
	initialized bool
	initErr     error
	backend     types.Backend

	mu sync.RWMutex
}

// New creates a Store for cfg. Nothing is opened until the first operation
// or an explicit Initialize.
func New(cfg types.Config, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		logger: zerolog.Nop(),
		clock:  time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the backend. Only the first call does any work, whether
// it succeeds or fails; every other operation calls it implicitly.
func (s *Store) Initialize(ctx context.Context) {
	s.ready(ctx)
}

// Degraded reports whether initialization has run and failed.
func (s *Store) Degraded() bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initErr != nil
}

// Close releases the backend. After Close every operation behaves as in
// degraded mode.
func (s *Store) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.initialized = true
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

// ready initializes the store on first use and returns the open backend,
// or nil when degraded.
func (s *Store) ready(ctx context.Context) types.Backend {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return s.backend
	}
	s.initialized = true

	b, err := s.openBackend(ctx)
	if err != nil {
		s.initErr = err
		s.backend = nil
		s.logger.Error().Err(err).Msg("catch store unavailable, running degraded")
		return nil
	}
	s.backend = b
	return b
}

func (s *Store) openBackend(ctx context.Context) (types.Backend, error) {
	b := s.backend
	if b == nil {
		if err := s.cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		switch name := ResolveBackend(s.cfg); name {
		case types.BackendSQLite:
			b = sqlite.NewBackend(s.cfg.DataDir)
		case types.BackendKV:
			b = kv.NewBackend(s.storage())
		default:
			return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, name)
		}
	}
	if err := b.Open(ctx); err != nil {
		return nil, fmt.Errorf("opening backend: %w", err)
	}
	return b, nil
}

// storage returns the key-value storage for the kv backend.
func (s *Store) storage() kv.Storage {
	if s.kvStorage != nil {
		return s.kvStorage
	}
	switch s.cfg.KV.Driver {
	case types.KVDriverRedis:
		return kv.NewRedisStorage(s.cfg.KV.RedisAddr, s.cfg.KV.RedisPassword, s.cfg.KV.RedisDB)
	case types.KVDriverMemory:
		return kv.NewMemoryStorage()
	}
	if s.cfg.DataDir == "" {
		s.logger.Warn().Msg("no data directory configured, catches will not outlive this process")
		return kv.NewMemoryStorage()
	}
	return kv.NewFileStorage(s.cfg.DataDir)
}

// ResolveBackend returns the backend cfg selects. Auto selects sqlite when
// the SQLite driver is registered and a data directory is configured.
func ResolveBackend(cfg types.Config) string {
	if cfg.Backend != types.BackendAuto {
		return cfg.Backend
	}
	if cfg.DataDir != "" && slices.Contains(sql.Drivers(), sqlite.DriverName) {
		return types.BackendSQLite
	}
	return types.BackendKV
}

func (s *Store) now() string {
	return types.FormatTimestamp(s.clock())
}

// list runs a read returning catches. Failures yield an empty slice.
func (s *Store) list(ctx context.Context, op string, read func(types.Backend) ([]types.Catch, error)) []types.Catch {
	b := s.ready(ctx)
	if b == nil {
		return []types.Catch{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	catches, err := read(b)
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("catch query failed")
		return []types.Catch{}
	}
	return catches
}

// Add persists a new catch and returns its id, or types.NoID when nothing
// was stored.
func (s *Store) Add(ctx context.Context, n types.NewCatch) int64 {
	b := s.ready(ctx)
	if b == nil {
		return types.NoID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := b.Add(ctx, n, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("species", n.Species).Msg("add catch failed")
		return types.NoID
	}
	s.logger.Debug().Int64("id", id).Msg("catch added")
	return id
}

// GetAll returns every catch, most recent first.
func (s *Store) GetAll(ctx context.Context) []types.Catch {
	return s.list(ctx, "getAll", func(b types.Backend) ([]types.Catch, error) {
		return b.All(ctx)
	})
}

// GetByID returns the catch with the given id and whether it exists.
func (s *Store) GetByID(ctx context.Context, id int64) (types.Catch, bool) {
	b := s.ready(ctx)
	if b == nil {
		return types.Catch{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := b.Get(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return types.Catch{}, false
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("get catch failed")
		return types.Catch{}, false
	}
	return c, true
}

// Update applies the Set fields of p to the catch with the given id and
// refreshes its updatedAt. Unknown ids are ignored.
func (s *Store) Update(ctx context.Context, id int64, p types.CatchPatch) {
	b := s.ready(ctx)
	if b == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := b.Update(ctx, id, p, s.now()); err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("update catch failed")
	}
}

// Delete removes the catch with the given id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id int64) {
	b := s.ready(ctx)
	if b == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := b.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("delete catch failed")
	}
}

// GetByDateRange returns catches whose dateTime lies between start and end
// inclusive, compared as ISO strings.
func (s *Store) GetByDateRange(ctx context.Context, start, end string) []types.Catch {
	return s.list(ctx, "getByDateRange", func(b types.Backend) ([]types.Catch, error) {
		return b.Range(ctx, start, end)
	})
}

// GetStats returns the total count, the heaviest catch and the most
// frequent species.
func (s *Store) GetStats(ctx context.Context) types.Stats {
	b := s.ready(ctx)
	if b == nil {
		return types.Stats{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, err := b.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("catch stats failed")
		return types.Stats{}
	}
	return stats
}

// FilterCatches returns catches satisfying every constraint in f.
func (s *Store) FilterCatches(ctx context.Context, f types.Filters) []types.Catch {
	return s.list(ctx, "filterCatches", func(b types.Backend) ([]types.Catch, error) {
		return b.Filter(ctx, f)
	})
}

// SearchCatches returns catches whose species, location name, bait, notes
// or tags contain query, ignoring case.
func (s *Store) SearchCatches(ctx context.Context, query string) []types.Catch {
	return s.list(ctx, "searchCatches", func(b types.Backend) ([]types.Catch, error) {
		return b.Search(ctx, query)
	})
}

// GetAllTags returns every tag in use, sorted.
func (s *Store) GetAllTags(ctx context.Context) []string {
	b := s.ready(ctx)
	if b == nil {
		return []string{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tags, err := b.Tags(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing tags failed")
		return []string{}
	}
	return tags
}

// GetMonthlyStats returns per-month counts and total weight, oldest month
// first. Only months with catches appear.
func (s *Store) GetMonthlyStats(ctx context.Context) []types.MonthlyStat {
	return types.MonthlyStats(s.GetAll(ctx), s.loc)
}

// GetWeekdayStats returns catch counts per weekday, Sunday first.
func (s *Store) GetWeekdayStats(ctx context.Context) types.WeekdayStats {
	return types.CountByWeekday(s.GetAll(ctx), s.loc)
}
