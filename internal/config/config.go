// Package config loads pipeline configuration from files, environment
// variables and defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. TBX_SERVER_PORT.
const EnvPrefix = "TBX"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager that searches the default
// config paths.
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading an explicit
// config file. An empty path searches the default locations.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{file: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()
	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/tumor-board-extractor/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key is also honoured under the SDK's own variable name.
	_ = v.BindEnv("oracle.api_key", EnvPrefix+"_ORACLE_API_KEY", "ANTHROPIC_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || m.file != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "10m")
	v.SetDefault("server.max_upload_bytes", 20<<20)

	// Oracle defaults
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.max_tokens", 4096)
	v.SetDefault("oracle.timeout", "120s")
	v.SetDefault("oracle.rate_limit", 0)
	v.SetDefault("oracle.breaker_max_requests", 5)
	v.SetDefault("oracle.breaker_interval", "30s")
	v.SetDefault("oracle.breaker_timeout", "60s")

	// Reliability loop defaults
	v.SetDefault("reliability.enabled", false)
	v.SetDefault("reliability.quality_threshold", 0.95)
	v.SetDefault("reliability.max_iterations", 3)
	v.SetDefault("reliability.min_improvement", 0.03)
	v.SetDefault("reliability.source_char_limit", 12000)
	v.SetDefault("reliability.oracle_timeout", "90s")

	// Cache defaults
	v.SetDefault("cache.max_items", 100)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)

	// Audit defaults
	v.SetDefault("audit.driver", "sqlite")
	v.SetDefault("audit.sqlite_path", "./data/audit.db")
	v.SetDefault("audit.postgres_url", "")
	v.SetDefault("audit.auto_migrate", true)
	v.SetDefault("audit.max_open_conns", 25)
	v.SetDefault("audit.max_idle_conns", 5)
	v.SetDefault("audit.conn_max_lifetime", "5m")

	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("redaction.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "tumor-board-extractor")
	v.SetDefault("mcp.server_version", "v0.1.0")
	v.SetDefault("mcp.export_dir", "./data/exports")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetOracleConfig returns oracle configuration
func (m *Manager) GetOracleConfig() *domain.OracleConfig {
	return &m.config.Oracle
}

// GetReliabilityConfig returns reliability loop configuration
func (m *Manager) GetReliabilityConfig() *domain.ReliabilityConfig {
	return &m.config.Reliability
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration for values the pipeline cannot run with.
func Validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	r := config.Reliability
	if r.QualityThreshold <= 0 || r.QualityThreshold > 1 {
		return fmt.Errorf("quality threshold must be in (0, 1]: %v", r.QualityThreshold)
	}
	if r.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1: %d", r.MaxIterations)
	}
	if r.MinImprovement < 0 {
		return fmt.Errorf("min improvement must not be negative: %v", r.MinImprovement)
	}

	if config.Cache.MaxItems < 1 {
		return fmt.Errorf("cache max items must be at least 1: %d", config.Cache.MaxItems)
	}
	if config.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("pipeline max concurrency must be at least 1: %d", config.Pipeline.MaxConcurrency)
	}

	switch strings.ToLower(config.Audit.Driver) {
	case "", "none":
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite path is required")
		}
	case "postgres":
		if config.Audit.PostgresURL == "" {
			return fmt.Errorf("audit postgres URL is required")
		}
	default:
		return fmt.Errorf("unknown audit driver: %s", config.Audit.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}
