// Package config loads tiercache configuration from YAML files and
// environment variables. Generic cache options that cannot be expressed in
// YAML (callbacks, serializers, typed keys) stay on the cache package's own
// config types; this package covers everything an operator tunes.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/tiercache/tiercache/pkg/cache"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/retry"
	"github.com/tiercache/tiercache/pkg/storage"
)

// Storage backend identifiers accepted in StorageConfig.Type.
const (
	StorageNone   = ""
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageValkey = "valkey"
	StorageS3     = "s3"
)

// Configuration represents the complete tiercache configuration
type Configuration struct {
	Cache      CacheConfig      `yaml:"cache"`
	Adaptive   AdaptiveConfig   `yaml:"adaptive"`
	MultiLevel MultiLevelConfig `yaml:"multilevel"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CacheConfig represents the in-memory tier settings
type CacheConfig struct {
	Capacity        int           `yaml:"capacity"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MetricsName     string        `yaml:"metrics_name"`
}

// AdaptiveConfig represents adaptive sizing settings
type AdaptiveConfig struct {
	Enabled         bool          `yaml:"enabled"`
	InitialCapacity int           `yaml:"initial_capacity"`
	MinCapacity     int           `yaml:"min_capacity"`
	MaxCapacity     int           `yaml:"max_capacity"`
	TargetHitRate   float64       `yaml:"target_hit_rate"`
	MinSamples      uint64        `yaml:"min_samples"`
	TuneInterval    time.Duration `yaml:"tune_interval"`
	HistoryLimit    int           `yaml:"history_limit"`
}

// MultiLevelConfig represents two-tier cache settings
type MultiLevelConfig struct {
	Enabled bool                `yaml:"enabled"`
	Prefix  string              `yaml:"prefix"`
	Breaker cache.BreakerConfig `yaml:"breaker"`
}

// StorageConfig represents the persistent tier selection and settings
type StorageConfig struct {
	Type   string             `yaml:"type"`
	Memory MemoryConfig       `yaml:"memory"`
	File   storage.FileConfig `yaml:"file"`
	Valkey ValkeyConfig       `yaml:"valkey"`
	S3     storage.S3Config   `yaml:"s3"`
}

// MemoryConfig represents in-process store settings
type MemoryConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// ValkeyConfig represents Valkey client and store settings
type ValkeyConfig struct {
	InitAddress []string      `yaml:"init_address"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	SelectDB    int           `yaml:"select_db"`
	TTL         time.Duration `yaml:"ttl"`
}

// APIConfig represents the monitoring HTTP server settings
type APIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfiguration returns a configuration with sensible defaults
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Cache: CacheConfig{
			Capacity:        10000,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
			MetricsName:     "tiercache",
		},
		Adaptive: AdaptiveConfig{
			Enabled:         false,
			InitialCapacity: 10000,
			MinCapacity:     1000,
			MaxCapacity:     100000,
			TargetHitRate:   0.8,
			MinSamples:      1000,
			TuneInterval:    time.Minute,
			HistoryLimit:    10,
		},
		MultiLevel: MultiLevelConfig{
			Enabled: false,
			Prefix:  "tiercache:",
			Breaker: cache.BreakerConfig{
				Enabled:      true,
				MinRequests:  20,
				FailureRatio: 0.5,
				OpenTimeout:  30 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type: StorageMemory,
			Memory: MemoryConfig{
				MaxBytes: 256 << 20,
			},
			File: storage.FileConfig{
				Directory:    "/var/cache/tiercache",
				MaxBytes:     1 << 30,
				Compression:  true,
				IndexFile:    storage.DefaultIndexFile,
				SyncInterval: storage.DefaultSyncInterval,
			},
			Valkey: ValkeyConfig{
				InitAddress: []string{"127.0.0.1:6379"},
			},
			S3: storage.S3Config{
				Region: "us-east-1",
				Prefix: "tiercache/",
				Retry:  retry.DefaultConfig(),
			},
		},
		API: APIConfig{
			Enabled:         true,
			Listen:          ":8600",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file at path, applies environment overrides,
// and validates the result. Values absent from the file keep their defaults.
func Load(path string) (*Configuration, error) {
	cfg := DefaultConfiguration()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration at path, falling back to defaults
// when path is empty or loading fails. The fallback still honors environment
// overrides; a nil logger disables logging.
func LoadOrDefault(path string, logger *zap.SugaredLogger) *Configuration {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if path != "" {
		cfg, err := Load(path)
		if err == nil {
			return cfg
		}
		logger.Warnw("falling back to default configuration",
			"path", path,
			"error", err,
		)
	}

	cfg := DefaultConfiguration()
	if err := cfg.LoadFromEnv(); err != nil {
		logger.Warnw("ignoring environment overrides", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Warnw("ignoring invalid environment overrides", "error", err)
		return DefaultConfiguration()
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to parse config file")
	}

	return nil
}

// LoadFromEnv applies TIERCACHE_* environment variable overrides. Values
// that fail to parse are skipped.
func (c *Configuration) LoadFromEnv() error {
	// Cache settings
	if val := os.Getenv("TIERCACHE_CACHE_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.Cache.Capacity = capacity
		}
	}
	if val := os.Getenv("TIERCACHE_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = ttl
		}
	}
	if val := os.Getenv("TIERCACHE_CLEANUP_INTERVAL"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			c.Cache.CleanupInterval = interval
		}
	}

	// Adaptive settings
	if val := os.Getenv("TIERCACHE_ADAPTIVE_ENABLED"); val != "" {
		c.Adaptive.Enabled = strings.ToLower(val) == "true"
	}

	// Storage settings
	if val := os.Getenv("TIERCACHE_STORAGE_TYPE"); val != "" {
		c.Storage.Type = strings.ToLower(val)
	}
	if val := os.Getenv("TIERCACHE_FILE_DIRECTORY"); val != "" {
		c.Storage.File.Directory = val
	}
	if val := os.Getenv("TIERCACHE_VALKEY_ENDPOINT"); val != "" {
		c.Storage.Valkey.InitAddress = strings.Split(val, ",")
	}
	if val := os.Getenv("TIERCACHE_VALKEY_PASSWORD"); val != "" {
		c.Storage.Valkey.Password = val
	}
	if val := os.Getenv("TIERCACHE_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("TIERCACHE_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("TIERCACHE_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}

	// API settings
	if val := os.Getenv("TIERCACHE_API_ENABLED"); val != "" {
		c.API.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("TIERCACHE_API_LISTEN"); val != "" {
		c.API.Listen = val
	}

	// Logging settings
	if val := os.Getenv("TIERCACHE_LOG_LEVEL"); val != "" {
		c.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("TIERCACHE_LOG_FORMAT"); val != "" {
		c.Logging.Format = strings.ToLower(val)
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to create config directory")
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "failed to write config file")
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Cache.Capacity <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "cache.capacity must be greater than 0")
	}

	if c.Adaptive.Enabled {
		if c.Adaptive.MinCapacity <= 0 {
			return errors.New(errors.ErrCodeConfigValidation, "adaptive.min_capacity must be greater than 0")
		}
		if c.Adaptive.MaxCapacity < c.Adaptive.MinCapacity {
			return errors.New(errors.ErrCodeConfigValidation, "adaptive.max_capacity must be at least adaptive.min_capacity")
		}
		if c.Adaptive.InitialCapacity < c.Adaptive.MinCapacity || c.Adaptive.InitialCapacity > c.Adaptive.MaxCapacity {
			return errors.New(errors.ErrCodeConfigValidation, "adaptive.initial_capacity must be between adaptive.min_capacity and adaptive.max_capacity")
		}
		if c.Adaptive.TargetHitRate <= 0 || c.Adaptive.TargetHitRate >= 1 {
			return errors.New(errors.ErrCodeConfigValidation, "adaptive.target_hit_rate must be in (0, 1)")
		}
	}

	if c.MultiLevel.Enabled && c.MultiLevel.Breaker.Enabled {
		if ratio := c.MultiLevel.Breaker.FailureRatio; ratio <= 0 || ratio > 1 {
			return errors.New(errors.ErrCodeConfigValidation, "multilevel.breaker.failure_ratio must be in (0, 1]")
		}
	}

	switch c.Storage.Type {
	case StorageNone, StorageMemory:
	case StorageFile:
		if c.Storage.File.Directory == "" {
			return errors.New(errors.ErrCodeConfigValidation, "storage.file.directory is required for file storage")
		}
	case StorageValkey:
		if len(c.Storage.Valkey.InitAddress) == 0 {
			return errors.New(errors.ErrCodeConfigValidation, "storage.valkey.init_address is required for valkey storage")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New(errors.ErrCodeConfigValidation, "storage.s3.bucket is required for s3 storage")
		}
	default:
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid storage.type: %s (must be one of: memory, file, valkey, s3)", c.Storage.Type)
	}

	if c.API.Enabled && c.API.Listen == "" {
		return errors.New(errors.ErrCodeConfigValidation, "api.listen must be set when the API is enabled")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid logging.level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid logging.format: %s (must be json or console)", c.Logging.Format)
	}

	return nil
}

// BuildLogger constructs a zap logger from the logging settings. Components
// accept the resulting *zap.SugaredLogger at construction.
func (l LoggingConfig) BuildLogger() (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if l.Level != "" {
		parsed, err := zapcore.ParseLevel(l.Level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid log level")
		}
		level = parsed
	}

	var zcfg zap.Config
	if l.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to build logger")
	}
	return logger.Sugar(), nil
}
