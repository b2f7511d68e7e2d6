package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Redaction   RedactionConfig   `mapstructure:"redaction"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	MCP         MCPConfig         `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// OracleConfig configures the text-understanding oracle
type OracleConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	MaxRequests uint32        `mapstructure:"breaker_max_requests"`
	Interval    time.Duration `mapstructure:"breaker_interval"`
	OpenTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// ReliabilityConfig configures the quality-gated extraction loop
type ReliabilityConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	QualityThreshold float64       `mapstructure:"quality_threshold"`
	MaxIterations    int           `mapstructure:"max_iterations"`
	MinImprovement   float64       `mapstructure:"min_improvement"`
	SourceCharLimit  int           `mapstructure:"source_char_limit"`
	OracleTimeout    time.Duration `mapstructure:"oracle_timeout"`
}

// CacheConfig represents content cache configuration
type CacheConfig struct {
	MaxItems   int           `mapstructure:"max_items"`
	TTL        time.Duration `mapstructure:"ttl"`
	RedisURL   string        `mapstructure:"redis_url"`
	RedisDB    int           `mapstructure:"redis_db"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// AuditConfig selects and configures the run audit store
type AuditConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres or none
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PipelineConfig configures document processing
type PipelineConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// RedactionConfig configures identifier redaction
type RedactionConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig identifies the MCP tool server to clients
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	ExportDir     string `mapstructure:"export_dir"`
}
