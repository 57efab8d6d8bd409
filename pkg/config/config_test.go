package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiercache/tiercache/pkg/errors"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()

	// Cache defaults
	if cfg.Cache.Capacity != 10000 {
		t.Errorf("Expected Capacity to be 10000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Expected DefaultTTL to be 5 minutes, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.CleanupInterval != time.Minute {
		t.Errorf("Expected CleanupInterval to be 1 minute, got %v", cfg.Cache.CleanupInterval)
	}

	// Adaptive defaults
	if cfg.Adaptive.Enabled {
		t.Error("Expected adaptive sizing to be disabled by default")
	}
	if cfg.Adaptive.TargetHitRate != 0.8 {
		t.Errorf("Expected TargetHitRate to be 0.8, got %v", cfg.Adaptive.TargetHitRate)
	}

	// MultiLevel defaults
	if cfg.MultiLevel.Enabled {
		t.Error("Expected multi-level caching to be disabled by default")
	}
	if cfg.MultiLevel.Prefix != "tiercache:" {
		t.Errorf("Expected Prefix to be tiercache:, got %s", cfg.MultiLevel.Prefix)
	}
	if !cfg.MultiLevel.Breaker.Enabled {
		t.Error("Expected breaker to be enabled by default")
	}

	// Storage defaults
	if cfg.Storage.Type != StorageMemory {
		t.Errorf("Expected storage type to be memory, got %s", cfg.Storage.Type)
	}
	if cfg.Storage.Memory.MaxBytes != 256<<20 {
		t.Errorf("Expected memory MaxBytes to be 256MB, got %d", cfg.Storage.Memory.MaxBytes)
	}
	if !cfg.Storage.File.Compression {
		t.Error("Expected file compression to be enabled by default")
	}
	if cfg.Storage.S3.Retry.MaxAttempts == 0 {
		t.Error("Expected s3 retry defaults to be populated")
	}

	// API defaults
	if !cfg.API.Enabled {
		t.Error("Expected API to be enabled by default")
	}
	if cfg.API.Listen != ":8600" {
		t.Errorf("Expected Listen to be :8600, got %s", cfg.API.Listen)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected Level to be info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected Format to be json, got %s", cfg.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Configuration {
				return DefaultConfiguration()
			},
			wantErr: false,
		},
		{
			name: "zero capacity",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Cache.Capacity = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "cache.capacity must be greater than 0",
		},
		{
			name: "adaptive zero min capacity",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Adaptive.Enabled = true
				cfg.Adaptive.MinCapacity = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "adaptive.min_capacity must be greater than 0",
		},
		{
			name: "adaptive max below min",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Adaptive.Enabled = true
				cfg.Adaptive.MinCapacity = 5000
				cfg.Adaptive.MaxCapacity = 1000
				return cfg
			},
			wantErr: true,
			errMsg:  "adaptive.max_capacity must be at least adaptive.min_capacity",
		},
		{
			name: "adaptive initial out of range",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Adaptive.Enabled = true
				cfg.Adaptive.InitialCapacity = 500
				return cfg
			},
			wantErr: true,
			errMsg:  "adaptive.initial_capacity must be between",
		},
		{
			name: "adaptive target hit rate too high",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Adaptive.Enabled = true
				cfg.Adaptive.TargetHitRate = 1.0
				return cfg
			},
			wantErr: true,
			errMsg:  "adaptive.target_hit_rate must be in (0, 1)",
		},
		{
			name: "breaker ratio out of range",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.MultiLevel.Enabled = true
				cfg.MultiLevel.Breaker.FailureRatio = 1.5
				return cfg
			},
			wantErr: true,
			errMsg:  "multilevel.breaker.failure_ratio must be in (0, 1]",
		},
		{
			name: "unknown storage type",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Storage.Type = "tape"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid storage.type: tape",
		},
		{
			name: "file storage without directory",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Storage.Type = StorageFile
				cfg.Storage.File.Directory = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "storage.file.directory is required",
		},
		{
			name: "valkey storage without addresses",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Storage.Type = StorageValkey
				cfg.Storage.Valkey.InitAddress = nil
				return cfg
			},
			wantErr: true,
			errMsg:  "storage.valkey.init_address is required",
		},
		{
			name: "s3 storage without bucket",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Storage.Type = StorageS3
				return cfg
			},
			wantErr: true,
			errMsg:  "storage.s3.bucket is required",
		},
		{
			name: "api enabled without listen address",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.API.Listen = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "api.listen must be set",
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Logging.Level = "verbose"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid logging.level",
		},
		{
			name: "invalid log format",
			config: func() *Configuration {
				cfg := DefaultConfiguration()
				cfg.Logging.Format = "xml"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				if !errors.IsCode(err, errors.ErrCodeConfigValidation) {
					t.Errorf("Expected CONFIG_VALIDATION code, got %v", errors.CodeOf(err))
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
				}
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
cache:
  capacity: 50000
  metrics_name: sessions

storage:
  type: valkey
  valkey:
    init_address:
      - "valkey-1:6379"
      - "valkey-2:6379"
    select_db: 3

logging:
  level: debug
  format: console
`

	err := os.WriteFile(configFile, []byte(configContent), 0o600)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := DefaultConfiguration()
	err = cfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	// Overridden values
	if cfg.Cache.Capacity != 50000 {
		t.Errorf("Expected Capacity to be 50000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.MetricsName != "sessions" {
		t.Errorf("Expected MetricsName to be sessions, got %s", cfg.Cache.MetricsName)
	}
	if cfg.Storage.Type != StorageValkey {
		t.Errorf("Expected storage type to be valkey, got %s", cfg.Storage.Type)
	}
	if len(cfg.Storage.Valkey.InitAddress) != 2 {
		t.Errorf("Expected 2 valkey addresses, got %d", len(cfg.Storage.Valkey.InitAddress))
	}
	if cfg.Storage.Valkey.SelectDB != 3 {
		t.Errorf("Expected SelectDB to be 3, got %d", cfg.Storage.Valkey.SelectDB)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected Level to be debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected Format to be console, got %s", cfg.Logging.Format)
	}

	// Values absent from the file keep their defaults
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Expected DefaultTTL to keep its default, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.API.Listen != ":8600" {
		t.Errorf("Expected Listen to keep its default, got %s", cfg.API.Listen)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := DefaultConfiguration()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error when loading non-existent config file")
	}
	if !errors.IsCode(err, errors.ErrCodeConfigLoad) {
		t.Errorf("Expected CONFIG_LOAD code, got %v", errors.CodeOf(err))
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("cache: [not a map"), 0o600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := DefaultConfiguration()
	err := cfg.LoadFromFile(configFile)
	if err == nil {
		t.Fatal("Expected error when loading malformed config file")
	}
	if !errors.IsCode(err, errors.ErrCodeConfigLoad) {
		t.Errorf("Expected CONFIG_LOAD code, got %v", errors.CodeOf(err))
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"TIERCACHE_CACHE_CAPACITY":  "50000",
		"TIERCACHE_CACHE_TTL":       "10m",
		"TIERCACHE_STORAGE_TYPE":    "S3",
		"TIERCACHE_S3_BUCKET":       "cache-prod",
		"TIERCACHE_S3_REGION":       "eu-west-1",
		"TIERCACHE_VALKEY_ENDPOINT": "10.0.0.1:6379,10.0.0.2:6379",
		"TIERCACHE_API_ENABLED":     "false",
		"TIERCACHE_LOG_LEVEL":       "DEBUG",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := DefaultConfiguration()
	err := cfg.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Cache.Capacity != 50000 {
		t.Errorf("Expected Capacity to be 50000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.DefaultTTL != 10*time.Minute {
		t.Errorf("Expected DefaultTTL to be 10 minutes, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Storage.Type != StorageS3 {
		t.Errorf("Expected storage type to be s3, got %s", cfg.Storage.Type)
	}
	if cfg.Storage.S3.Bucket != "cache-prod" {
		t.Errorf("Expected Bucket to be cache-prod, got %s", cfg.Storage.S3.Bucket)
	}
	if cfg.Storage.S3.Region != "eu-west-1" {
		t.Errorf("Expected Region to be eu-west-1, got %s", cfg.Storage.S3.Region)
	}
	want := []string{"10.0.0.1:6379", "10.0.0.2:6379"}
	if len(cfg.Storage.Valkey.InitAddress) != len(want) {
		t.Fatalf("Expected %d valkey addresses, got %d", len(want), len(cfg.Storage.Valkey.InitAddress))
	}
	for i, addr := range want {
		if cfg.Storage.Valkey.InitAddress[i] != addr {
			t.Errorf("Expected address %d to be %s, got %s", i, addr, cfg.Storage.Valkey.InitAddress[i])
		}
	}
	if cfg.API.Enabled {
		t.Error("Expected API to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected Level to be debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromEnvInvalidValuesSkipped(t *testing.T) {
	t.Setenv("TIERCACHE_CACHE_CAPACITY", "lots")
	t.Setenv("TIERCACHE_CACHE_TTL", "soon")

	cfg := DefaultConfiguration()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Cache.Capacity != 10000 {
		t.Errorf("Expected unparseable capacity to be skipped, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Expected unparseable TTL to be skipped, got %v", cfg.Cache.DefaultTTL)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
cache:
  capacity: 2048

storage:
  type: file
  file:
    directory: /tmp/tiercache-test
`
	if err := os.WriteFile(configFile, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	// Environment overrides win over file values.
	t.Setenv("TIERCACHE_CACHE_CAPACITY", "4096")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Capacity != 4096 {
		t.Errorf("Expected Capacity to be 4096, got %d", cfg.Cache.Capacity)
	}
	if cfg.Storage.Type != StorageFile {
		t.Errorf("Expected storage type to be file, got %s", cfg.Storage.Type)
	}
	if cfg.Storage.File.Directory != "/tmp/tiercache-test" {
		t.Errorf("Expected Directory to be /tmp/tiercache-test, got %s", cfg.Storage.File.Directory)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
cache:
  capacity: -1
`
	if err := os.WriteFile(configFile, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	_, err := Load(configFile)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !errors.IsCode(err, errors.ErrCodeConfigValidation) {
		t.Errorf("Expected CONFIG_VALIDATION code, got %v", errors.CodeOf(err))
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg := LoadOrDefault("", nil)
		if cfg == nil {
			t.Fatal("Expected a configuration")
		}
		if cfg.Cache.Capacity != 10000 {
			t.Errorf("Expected default capacity, got %d", cfg.Cache.Capacity)
		}
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg := LoadOrDefault("/nonexistent/config.yaml", nil)
		if cfg == nil {
			t.Fatal("Expected a configuration")
		}
		if cfg.Storage.Type != StorageMemory {
			t.Errorf("Expected default storage type, got %s", cfg.Storage.Type)
		}
	})

	t.Run("valid file loads", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")
		configContent := "cache:\n  capacity: 777\n"
		if err := os.WriteFile(configFile, []byte(configContent), 0o600); err != nil {
			t.Fatalf("Failed to write test config file: %v", err)
		}

		cfg := LoadOrDefault(configFile, nil)
		if cfg.Cache.Capacity != 777 {
			t.Errorf("Expected Capacity to be 777, got %d", cfg.Cache.Capacity)
		}
	})

	t.Run("invalid environment falls back to defaults", func(t *testing.T) {
		t.Setenv("TIERCACHE_STORAGE_TYPE", "tape")

		cfg := LoadOrDefault("", nil)
		if cfg.Storage.Type != StorageMemory {
			t.Errorf("Expected default storage type, got %s", cfg.Storage.Type)
		}
	})
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "saved_config.yaml")

	cfg := DefaultConfiguration()
	cfg.Cache.Capacity = 123456
	cfg.Storage.Type = StorageValkey

	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	newCfg := DefaultConfiguration()
	err = newCfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if newCfg.Cache.Capacity != 123456 {
		t.Errorf("Expected Capacity to be 123456, got %d", newCfg.Cache.Capacity)
	}
	if newCfg.Storage.Type != StorageValkey {
		t.Errorf("Expected storage type to be valkey, got %s", newCfg.Storage.Type)
	}
	if newCfg.Cache.DefaultTTL != cfg.Cache.DefaultTTL {
		t.Errorf("Expected DefaultTTL to round-trip, got %v", newCfg.Cache.DefaultTTL)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfiguration()
	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
	if _, err := os.Stat(filepath.Dir(configFile)); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestBuildLogger(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		logger, err := LoggingConfig{}.BuildLogger()
		if err != nil {
			t.Fatalf("BuildLogger() error = %v", err)
		}
		if logger == nil {
			t.Fatal("Expected a logger")
		}
	})

	t.Run("console debug", func(t *testing.T) {
		logger, err := LoggingConfig{Level: "debug", Format: "console"}.BuildLogger()
		if err != nil {
			t.Fatalf("BuildLogger() error = %v", err)
		}
		if logger == nil {
			t.Fatal("Expected a logger")
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := LoggingConfig{Level: "chatty"}.BuildLogger()
		if err == nil {
			t.Fatal("Expected error for invalid level")
		}
		if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("Expected INVALID_CONFIG code, got %v", errors.CodeOf(err))
		}
	})
}
