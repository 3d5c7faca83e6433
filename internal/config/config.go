package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Access    AccessConfig    `yaml:"access" json:"access"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit" json:"audit"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

type AccessConfig struct {
	SuspiciousThreshold int           `yaml:"suspicious_threshold" json:"suspicious_threshold"` // Denied checks before an IP is blocked
	SuspiciousMaxAge    time.Duration `yaml:"suspicious_max_age" json:"suspicious_max_age"`     // Age after which suspicious records may be cleaned
	LogCapacity         int           `yaml:"log_capacity" json:"log_capacity"`                 // Maximum in-memory access log entries
	LogDropBatch        int           `yaml:"log_drop_batch" json:"log_drop_batch"`             // Entries dropped in one batch on overflow
}

type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type AuditConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	DataPath string `yaml:"data_path" json:"data_path"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}

type LoggingConfig struct {
	Level                string `yaml:"level" json:"level"`
	Format               string `yaml:"format" json:"format"`
	Output               string `yaml:"output" json:"output"`
	EnableRequestTracing bool   `yaml:"enable_request_tracing" json:"enable_request_tracing"`
	EnableCorrelationIDs bool   `yaml:"enable_correlation_ids" json:"enable_correlation_ids"`
}

func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Access: AccessConfig{
			SuspiciousThreshold: 10,
			SuspiciousMaxAge:    24 * time.Hour,
			LogCapacity:         10000,
			LogDropBatch:        5000,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			CleanupInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:  false,
			DataPath: "./data/audit",
			InMemory: false,
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "json",
			Output:               "stdout",
			EnableRequestTracing: true,
			EnableCorrelationIDs: true,
		},
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

func loadFromEnvironment(config *Config) {
	// Server configuration
	if host := os.Getenv("ADM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("ADM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Access control configuration
	if threshold := os.Getenv("ADM_ACCESS_SUSPICIOUS_THRESHOLD"); threshold != "" {
		if n, err := strconv.Atoi(threshold); err == nil {
			config.Access.SuspiciousThreshold = n
		}
	}
	if capacity := os.Getenv("ADM_ACCESS_LOG_CAPACITY"); capacity != "" {
		if n, err := strconv.Atoi(capacity); err == nil {
			config.Access.LogCapacity = n
		}
	}

	// Rate limit configuration
	if enabled := os.Getenv("ADM_RATELIMIT_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.RateLimit.Enabled = b
		}
	}
	if interval := os.Getenv("ADM_RATELIMIT_CLEANUP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.RateLimit.CleanupInterval = d
		}
	}

	// Audit configuration
	if enabled := os.Getenv("ADM_AUDIT_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Audit.Enabled = b
		}
	}
	if dataPath := os.Getenv("ADM_AUDIT_DATA_PATH"); dataPath != "" {
		config.Audit.DataPath = dataPath
	}

	// Logging configuration
	if level := os.Getenv("ADM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("ADM_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	// Access control validation
	if c.Access.SuspiciousThreshold <= 0 {
		return fmt.Errorf("suspicious threshold must be positive")
	}
	if c.Access.SuspiciousMaxAge <= 0 {
		return fmt.Errorf("suspicious max age must be positive")
	}
	if c.Access.LogCapacity <= 0 {
		return fmt.Errorf("access log capacity must be positive")
	}
	if c.Access.LogDropBatch <= 0 || c.Access.LogDropBatch > c.Access.LogCapacity {
		return fmt.Errorf("log drop batch must be positive and not exceed capacity")
	}

	// Rate limit validation
	if c.RateLimit.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	// Audit validation
	if c.Audit.Enabled && !c.Audit.InMemory && c.Audit.DataPath == "" {
		return fmt.Errorf("audit data path cannot be empty when audit is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
