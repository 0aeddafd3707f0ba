// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is given no path.
const ConfigPath = "config.yaml"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMinio    = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string `yaml:"port"`
	LogLevel           string `yaml:"logLevel"`
	StorageBackend     string `yaml:"storageBackend"`
	DataDir            string `yaml:"dataDir"`
	DatabaseURL        string `yaml:"databaseURL"`
	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RedisPrefix        string `yaml:"redisPrefix"`
	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MemoryQuotaBytes   int    `yaml:"memoryQuotaBytes"`
	OTLPEndpoint       string `yaml:"otlpEndpoint"`
	ServiceName        string `yaml:"serviceName"`
	MutationsPerMinute int    `yaml:"mutationsPerMinute"`
	IDPrefix           string `yaml:"idPrefix"`
}

func defaults() FileConfig {
	return FileConfig{
		Port:               "8080",
		LogLevel:           "info",
		StorageBackend:     BackendFile,
		DataDir:            "data",
		RedisPrefix:        "libradesk:",
		MinioBucket:        "libradesk",
		ServiceName:        "libradesk",
		MutationsPerMinute: 120,
		IDPrefix:           "ID",
	}
}

// Load reads config from path (defaults to config.yaml). A missing default
// file is not an error; the built-in defaults and environment apply.
func Load(path string) (FileConfig, error) {
	cfg := defaults()
	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LIBRADESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LIBRADESK_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("LIBRADESK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LIBRADESK_REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	if v := os.Getenv("LIBRADESK_MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("LIBRADESK_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("LIBRADESK_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("LIBRADESK_MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("LIBRADESK_MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("LIBRADESK_MEMORY_QUOTA_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MemoryQuotaBytes = n
		}
	}
	if v := os.Getenv("LIBRADESK_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("LIBRADESK_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("LIBRADESK_MUTATIONS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MutationsPerMinute = n
		}
	}
	if v := os.Getenv("LIBRADESK_ID_PREFIX"); v != "" {
		cfg.IDPrefix = v
	}
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", cfg.LogLevel)
	}
	switch cfg.StorageBackend {
	case BackendMemory:
		if cfg.MemoryQuotaBytes < 0 {
			return errors.New("config: memoryQuotaBytes must be >= 0")
		}
	case BackendFile:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return errors.New("config: dataDir is required for the file backend (set in config.yaml or LIBRADESK_DATA_DIR)")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres backend (set in config.yaml or DATABASE_URL)")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis backend (set in config.yaml or REDIS_ADDR)")
		}
	case BackendMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for the minio backend")
		}
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minio backend requires LIBRADESK_MINIO_ACCESS_KEY + LIBRADESK_MINIO_SECRET_KEY")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q (want memory, file, postgres, redis or minio)", cfg.StorageBackend)
	}
	if cfg.MutationsPerMinute < 0 {
		return errors.New("config: mutationsPerMinute must be >= 0")
	}
	if strings.TrimSpace(cfg.IDPrefix) == "" {
		return errors.New("config: idPrefix must not be empty")
	}
	return nil
}
