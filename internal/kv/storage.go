// Package kv implements the key-value snapshot backend: the whole catch
// collection lives in memory and is persisted as one JSON blob under a fixed
// key after every mutation. It stands in for browser-style durable key-value
// APIs and runs on a local file, redis, or process memory.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/catchlog/internal/atomicfile"
)

// ErrKeyNotFound is returned by Storage.Load when nothing is stored under
// the key yet.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidKey is returned for keys that cannot be mapped onto the storage.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage is a durable key-value store holding opaque blobs.
type Storage interface {
	// Load returns the blob stored under key, or ErrKeyNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the blob stored under key.
	Save(ctx context.Context, key string, value []byte) error

	// Close releases the storage.
	Close() error
}

// validKey restricts keys to names that are safe as file names.
var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStorage keeps each key in its own JSON file under a directory.
type FileStorage struct {
	dir string
}

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created on the first Save.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load reads the file for key.
func (s *FileStorage) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Save atomically rewrites the file for key.
func (s *FileStorage) Save(ctx context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.dir, err)
	}
	return atomicfile.WriteFile(path, value)
}

// Close is a no-op for files.
func (s *FileStorage) Close() error { return nil }

// RedisStorage keeps blobs as plain redis string values.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects lazily to the redis server at addr.
func NewRedisStorage(addr, password string, db int) *RedisStorage {
	return &RedisStorage{
		client: redis.NewClient(&redis.Options{
			Addr:       addr,
			Password:   password,
			DB:         db,
			MaxRetries: 3,
		}),
	}
}

// Load issues GET key.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Save issues SET key value without expiry.
func (s *RedisStorage) Save(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// MemoryStorage keeps blobs in process memory. Nothing survives a restart.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Load returns a copy of the blob under key.
func (s *MemoryStorage) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of value under key.
func (s *MemoryStorage) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error { return nil }
