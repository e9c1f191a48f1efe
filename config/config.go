// Package config provides configuration management for Conclave services.
// It supports loading configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conclave-hq/conclave/pkg/db"
)

// Default configuration values.
const (
	DefaultListenAddress  = "localhost:8080"
	DefaultMetricsAddress = "localhost:9090"
	DefaultRedisAddress   = "localhost:6379"
	DefaultModel          = "gemini-2.5-flash"
	DefaultConfigDir      = ".conclave"
	DefaultConfigFile     = "config.yaml"

	DefaultInferenceTimeout = 30 * time.Second
	DefaultQuotaWindow      = 24 * time.Hour
	DefaultQuotaLimit       = 50
	DefaultWorkers          = 4
	DefaultAudioDir         = "recordings"
)

// ServerConfig holds HTTP and websocket listener settings.
type ServerConfig struct {
	// ListenAddress is the bind address for the API and signaling endpoints.
	ListenAddress string `yaml:"listen_address"`

	// MetricsAddress is the bind address for the Prometheus /metrics endpoint.
	MetricsAddress string `yaml:"metrics_address"`

	// JWTSecret signs and verifies actor tokens. Empty disables token auth
	// and every caller resolves to the anonymous actor.
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

// RedisConfig holds Redis connection settings for the job queue and quota limiter.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// InferenceConfig holds model invocation settings.
type InferenceConfig struct {
	// Model is the model identifier sent with every request.
	Model string `yaml:"model"`

	// Endpoint overrides the default API base URL. Used in tests.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Timeout bounds a single inference attempt.
	Timeout time.Duration `yaml:"-"`
}

// QuotaConfig holds the fixed-window rate limit for neutralization runs.
type QuotaConfig struct {
	Window time.Duration `yaml:"-"`
	Limit  int           `yaml:"limit"`
}

// StorageConfig holds local artifact storage settings.
type StorageConfig struct {
	// AudioDir is the directory holding room recordings. Relative paths
	// resolve against the working directory of the serve process.
	AudioDir string `yaml:"audio_dir"`
}

// WorkerConfig holds summarization worker pool settings.
type WorkerConfig struct {
	// Count is the number of concurrent summarization workers.
	Count int `yaml:"count"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "json" or "console".
	Format string `yaml:"format,omitempty"`
}

// Config is the root configuration for the serve and worker commands.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  *db.Config      `yaml:"-"`
	Redis     RedisConfig     `yaml:"redis"`
	Inference InferenceConfig `yaml:"inference"`
	Quota     QuotaConfig     `yaml:"quota"`
	Storage   StorageConfig   `yaml:"storage"`
	Workers   WorkerConfig    `yaml:"workers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:  DefaultListenAddress,
			MetricsAddress: DefaultMetricsAddress,
		},
		Database: db.DefaultConfig(),
		Redis: RedisConfig{
			Address: DefaultRedisAddress,
		},
		Inference: InferenceConfig{
			Model:   DefaultModel,
			Timeout: DefaultInferenceTimeout,
		},
		Quota: QuotaConfig{
			Window: DefaultQuotaWindow,
			Limit:  DefaultQuotaLimit,
		},
		Storage: StorageConfig{
			AudioDir: DefaultAudioDir,
		},
		Workers: WorkerConfig{
			Count: DefaultWorkers,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $CONCLAVE_CONFIG_DIR if set, otherwise ~/.conclave
func ConfigDir() (string, error) {
	if dir := os.Getenv("CONCLAVE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load builds the configuration in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.conclave/config.yaml or $CONCLAVE_CONFIG_DIR/config.yaml)
// 3. Environment variables (CONCLAVE_*, DB_*)
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.Database = db.ConfigFromEnv()
	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file. Durations are parsed
// from strings so the file reads "30s", not nanoseconds.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	type inferenceFile struct {
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
		Timeout  string `yaml:"timeout"`
	}
	type quotaFile struct {
		Window string `yaml:"window"`
		Limit  *int   `yaml:"limit"`
	}
	type configFile struct {
		Server    ServerConfig  `yaml:"server"`
		Redis     RedisConfig   `yaml:"redis"`
		Inference inferenceFile `yaml:"inference"`
		Quota     quotaFile     `yaml:"quota"`
		Storage   StorageConfig `yaml:"storage"`
		Workers   WorkerConfig  `yaml:"workers"`
		Logging   LoggingConfig `yaml:"logging"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Server.ListenAddress != "" {
		cfg.Server.ListenAddress = fileCfg.Server.ListenAddress
	}
	if fileCfg.Server.MetricsAddress != "" {
		cfg.Server.MetricsAddress = fileCfg.Server.MetricsAddress
	}
	if fileCfg.Server.JWTSecret != "" {
		cfg.Server.JWTSecret = fileCfg.Server.JWTSecret
	}
	if fileCfg.Redis.Address != "" {
		cfg.Redis.Address = fileCfg.Redis.Address
	}
	if fileCfg.Redis.Password != "" {
		cfg.Redis.Password = fileCfg.Redis.Password
	}
	if fileCfg.Redis.DB != 0 {
		cfg.Redis.DB = fileCfg.Redis.DB
	}
	if fileCfg.Inference.Model != "" {
		cfg.Inference.Model = fileCfg.Inference.Model
	}
	if fileCfg.Inference.Endpoint != "" {
		cfg.Inference.Endpoint = fileCfg.Inference.Endpoint
	}
	if fileCfg.Inference.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Inference.Timeout)
		if err != nil {
			return fmt.Errorf("parsing inference timeout: %w", err)
		}
		cfg.Inference.Timeout = timeout
	}
	if fileCfg.Quota.Window != "" {
		window, err := time.ParseDuration(fileCfg.Quota.Window)
		if err != nil {
			return fmt.Errorf("parsing quota window: %w", err)
		}
		cfg.Quota.Window = window
	}
	if fileCfg.Quota.Limit != nil {
		cfg.Quota.Limit = *fileCfg.Quota.Limit
	}
	if fileCfg.Storage.AudioDir != "" {
		cfg.Storage.AudioDir = fileCfg.Storage.AudioDir
	}
	if fileCfg.Workers.Count != 0 {
		cfg.Workers.Count = fileCfg.Workers.Count
	}
	if fileCfg.Logging.Level != "" {
		cfg.Logging.Level = fileCfg.Logging.Level
	}
	if fileCfg.Logging.Format != "" {
		cfg.Logging.Format = fileCfg.Logging.Format
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("CONCLAVE_LISTEN_ADDRESS"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if v := os.Getenv("CONCLAVE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("CONCLAVE_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("CONCLAVE_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("CONCLAVE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CONCLAVE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("CONCLAVE_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("CONCLAVE_INFERENCE_ENDPOINT"); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := os.Getenv("CONCLAVE_INFERENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Inference.Timeout = d
		}
	}
	if v := os.Getenv("CONCLAVE_QUOTA_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Quota.Window = d
		}
	}
	if v := os.Getenv("CONCLAVE_QUOTA_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quota.Limit = n
		}
	}
	if v := os.Getenv("CONCLAVE_AUDIO_DIR"); v != "" {
		cfg.Storage.AudioDir = v
	}
	if v := os.Getenv("CONCLAVE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.Count = n
		}
	}
	if v := os.Getenv("CONCLAVE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONCLAVE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server listen_address is required")
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("inference model is required")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota window must be positive")
	}
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota limit must be positive")
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Storage.AudioDir == "" {
		return fmt.Errorf("storage audio_dir is required")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	type inferenceFile struct {
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint,omitempty"`
		Timeout  string `yaml:"timeout"`
	}
	type quotaFile struct {
		Window string `yaml:"window"`
		Limit  int    `yaml:"limit"`
	}
	type configFile struct {
		Server    ServerConfig  `yaml:"server"`
		Redis     RedisConfig   `yaml:"redis"`
		Inference inferenceFile `yaml:"inference"`
		Quota     quotaFile     `yaml:"quota"`
		Storage   StorageConfig `yaml:"storage"`
		Workers   WorkerConfig  `yaml:"workers"`
		Logging   LoggingConfig `yaml:"logging"`
	}

	fileCfg := configFile{
		Server: cfg.Server,
		Redis:  cfg.Redis,
		Inference: inferenceFile{
			Model:    cfg.Inference.Model,
			Endpoint: cfg.Inference.Endpoint,
			Timeout:  cfg.Inference.Timeout.String(),
		},
		Quota: quotaFile{
			Window: cfg.Quota.Window.String(),
			Limit:  cfg.Quota.Limit,
		},
		Storage: cfg.Storage,
		Workers: cfg.Workers,
		Logging: cfg.Logging,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
