package domain

import (
	"context"
)

// ExtractionOracle is the external text-understanding capability. It performs
// OCR, structured extraction and accuracy scoring; it is non-deterministic,
// may fail, and may return malformed text.
type ExtractionOracle interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
	ExtractStructured(ctx context.Context, prompt string) (string, error)
	Score(ctx context.Context, prompt string) (string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetOracleConfig() *OracleConfig
	GetReliabilityConfig() *ReliabilityConfig
	Validate() error
}
