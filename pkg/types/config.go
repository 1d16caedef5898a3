package types

import "errors"

// Config holds backend selection and parameters for the catch store.
type Config struct {
	Backend string   `json:"backend" yaml:"backend"`
	DataDir string   `json:"data_dir" yaml:"data_dir"`
	KV      KVConfig `json:"kv" yaml:"kv"`
}

// KVConfig selects the key-value storage behind the kv backend.
type KVConfig struct {
	Driver        string `json:"driver" yaml:"driver"`
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
}

// Supported backend names. BackendAuto picks sqlite when the driver is
// available and a data directory is configured, kv otherwise.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendKV     = "kv"
)

// Supported key-value storage drivers.
const (
	KVDriverFile   = "file"
	KVDriverRedis  = "redis"
	KVDriverMemory = "memory"
)

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrKVDriverUnknown  = errors.New("unknown kv driver")
	ErrRedisAddrMissing = errors.New("redis kv driver requires an address")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendAuto:   true,
	BackendSQLite: true,
	BackendKV:     true,
}

// knownKVDrivers lists the kv drivers that Validate accepts. Empty means
// file.
var knownKVDrivers = map[string]bool{
	"":             true,
	KVDriverFile:   true,
	KVDriverRedis:  true,
	KVDriverMemory: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !knownKVDrivers[c.KV.Driver] {
		return ErrKVDriverUnknown
	}
	if c.KV.Driver == KVDriverRedis && c.KV.RedisAddr == "" {
		return ErrRedisAddrMissing
	}
	return nil
}
