package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/catchlog/internal/paths"
	"github.com/mesh-intelligence/catchlog/internal/share"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envFileName    = ".env"
	envPrefix      = "CATCHLOG"

	cfgKeyBackend         = "backend"
	cfgKeyDataDir         = "data_dir"
	cfgKeyExportDir       = "export_dir"
	cfgKeyLogLevel        = "log_level"
	cfgKeyTimezone        = "timezone"
	cfgKeyKVDriver        = "kv.driver"
	cfgKeyKVRedisAddr     = "kv.redis_addr"
	cfgKeyKVRedisPassword = "kv.redis_password"
	cfgKeyKVRedisDB       = "kv.redis_db"
	cfgKeyShareTarget     = "share.target"
	cfgKeyShareDir        = "share.dir"
	cfgKeyShareEndpoint   = "share.endpoint"
	cfgKeyShareAccessKey  = "share.access_key"
	cfgKeyShareSecretKey  = "share.secret_key"
	cfgKeyShareBucket     = "share.bucket"
	cfgKeyShareUseSSL     = "share.use_ssl"
	cfgKeyShareExpiry     = "share.expiry"

	defaultBackend  = types.BackendAuto
	defaultLogLevel = "warn"
)

// envKeys are the config keys that CATCHLOG_* environment variables
// override. data_dir is resolved separately by paths.ResolveDataDir.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyExportDir,
	cfgKeyLogLevel,
	cfgKeyTimezone,
	cfgKeyKVDriver,
	cfgKeyKVRedisAddr,
	cfgKeyKVRedisPassword,
	cfgKeyKVRedisDB,
	cfgKeyShareTarget,
	cfgKeyShareDir,
	cfgKeyShareEndpoint,
	cfgKeyShareAccessKey,
	cfgKeyShareSecretKey,
	cfgKeyShareBucket,
	cfgKeyShareUseSSL,
	cfgKeyShareExpiry,
}

// configFile is the structure written to a fresh config.yaml.
type configFile struct {
	Backend  string         `yaml:"backend"`
	DataDir  string         `yaml:"data_dir,omitempty"`
	LogLevel string         `yaml:"log_level"`
	KV       types.KVConfig `yaml:"kv"`
	Share    share.Config   `yaml:"share"`
}

const configHeader = "# catchlog configuration\n# Every key can be overridden by a CATCHLOG_* environment variable,\n# for example CATCHLOG_KV_DRIVER=redis.\n# data_dir defaults to the platform data directory.\n\n"

// settings is the configuration resolved for one invocation.
type settings struct {
	store     types.Config
	share     share.Config
	level     zerolog.Level
	loc       *time.Location
	exportDir string
}

// load resolves directories, reads config.yaml and builds the logger. It
// runs before every command except version.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	if err := loadEnvFile(configDir); err != nil {
		return userError("load %s: %w", envFileName, err)
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError("%w", err)
	}

	s, err := a.resolveSettings(v)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(s.level).
		With().Timestamp().Logger()
	a.logger.Debug().
		Str("config_dir", configDir).
		Str("data_dir", s.store.DataDir).
		Str("backend", s.store.Backend).
		Msg("configuration loaded")
	return nil
}

// loadEnvFile loads <configDir>/.env into the process environment when it
// exists. Variables already set are not overridden.
func loadEnvFile(configDir string) error {
	path := filepath.Join(configDir, envFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// config directory and a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyKVDriver, types.KVDriverFile)
	v.SetDefault(cfgKeyShareTarget, share.TargetNone)
	v.SetDefault(cfgKeyShareExpiry, share.DefaultLinkExpiry)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes a default config.yaml if configDir has
// none. An existing file is left untouched.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:  defaultBackend,
		LogLevel: defaultLogLevel,
		KV:       types.KVConfig{Driver: types.KVDriverFile},
		Share:    share.Config{Target: share.TargetNone},
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0o644)
}

// resolveSettings turns the loaded configuration into settings. Invalid
// values are user errors.
func (a *app) resolveSettings(v *viper.Viper) (settings, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, sysError("resolve data dir: %w", err)
	}

	level, err := zerolog.ParseLevel(v.GetString(cfgKeyLogLevel))
	if err != nil {
		return settings{}, userError("invalid %s: %w", cfgKeyLogLevel, err)
	}

	loc := time.Local
	if tz := v.GetString(cfgKeyTimezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return settings{}, userError("invalid %s: %w", cfgKeyTimezone, err)
		}
	}

	exportDir := v.GetString(cfgKeyExportDir)
	if exportDir == "" {
		exportDir = paths.ExportDir(dataDir)
	}

	return settings{
		store: types.Config{
			Backend: v.GetString(cfgKeyBackend),
			DataDir: dataDir,
			KV: types.KVConfig{
				Driver:        v.GetString(cfgKeyKVDriver),
				RedisAddr:     v.GetString(cfgKeyKVRedisAddr),
				RedisPassword: v.GetString(cfgKeyKVRedisPassword),
				RedisDB:       v.GetInt(cfgKeyKVRedisDB),
			},
		},
		share: share.Config{
			Target:    v.GetString(cfgKeyShareTarget),
			Dir:       v.GetString(cfgKeyShareDir),
			Endpoint:  v.GetString(cfgKeyShareEndpoint),
			AccessKey: v.GetString(cfgKeyShareAccessKey),
			SecretKey: v.GetString(cfgKeyShareSecretKey),
			Bucket:    v.GetString(cfgKeyShareBucket),
			UseSSL:    v.GetBool(cfgKeyShareUseSSL),
			Expiry:    v.GetDuration(cfgKeyShareExpiry),
		},
		level:     level,
		loc:       loc,
		exportDir: exportDir,
	}, nil
}
