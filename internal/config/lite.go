package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the audit database and exports

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Oracle
	APIKey string // Anthropic API key; empty disables OCR and extraction
	Model  string // Optional model override

	// Reliability loop
	ReliabilityEnabled bool
	QualityThreshold   float64
	MaxIterations      int

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".tumor-board-extractor")

	return &LiteConfig{
		DataDir:          dataDir,
		CacheMaxItems:    100,
		CacheTTL:         24 * time.Hour,
		QualityThreshold: 0.95,
		MaxIterations:    3,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("TBX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("TBX_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("TBX_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}

	cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.Model = os.Getenv("TBX_ORACLE_MODEL")

	// Reliability loop
	if v := os.Getenv("TBX_RELIABILITY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReliabilityEnabled = b
		}
	}
	if v := os.Getenv("TBX_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.QualityThreshold = f
		}
	}
	if v := os.Getenv("TBX_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
		}
	}

	// Logging
	if v := os.Getenv("TBX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TBX_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// AuditDBPath returns the path to the audit SQLite database.
func (c *LiteConfig) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Config expands the lite settings into a full configuration with an
// SQLite audit store and a memory-only cache.
func (c *LiteConfig) Config() *domain.Config {
	return &domain.Config{
		Oracle: domain.OracleConfig{
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: 4096,
			Timeout:   120 * time.Second,
		},
		Reliability: domain.ReliabilityConfig{
			Enabled:          c.ReliabilityEnabled,
			QualityThreshold: c.QualityThreshold,
			MaxIterations:    c.MaxIterations,
			MinImprovement:   0.03,
			SourceCharLimit:  12000,
			OracleTimeout:    90 * time.Second,
		},
		Cache: domain.CacheConfig{
			MaxItems: c.CacheMaxItems,
			TTL:      c.CacheTTL,
		},
		Audit: domain.AuditConfig{
			Driver:     "sqlite",
			SQLitePath: c.AuditDBPath(),
		},
		Pipeline:  domain.PipelineConfig{MaxConcurrency: 4},
		Redaction: domain.RedactionConfig{Enabled: true},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:    "tumor-board-extractor-lite",
			ServerVersion: "v0.1.0",
			ExportDir:     c.ExportDir(),
		},
	}
}
