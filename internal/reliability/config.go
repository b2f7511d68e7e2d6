package reliability

import (
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

const (
	DefaultQualityThreshold = 0.95
	DefaultMaxIterations    = 3
	DefaultMinImprovement   = 0.03
	DefaultSourceCharLimit  = 12000
	DefaultOracleTimeout    = 90 * time.Second

	// fallbackTextLimit bounds the raw text kept when extraction fails.
	fallbackTextLimit = 2000
)

// Config holds controller defaults.
type Config struct {
	QualityThreshold float64
	MaxIterations    int
	MinImprovement   float64
	SourceCharLimit  int
	OracleTimeout    time.Duration
}

// DefaultConfig returns the stock loop configuration.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: DefaultQualityThreshold,
		MaxIterations:    DefaultMaxIterations,
		MinImprovement:   DefaultMinImprovement,
		SourceCharLimit:  DefaultSourceCharLimit,
		OracleTimeout:    DefaultOracleTimeout,
	}
}

// ConfigFrom converts application configuration, keeping defaults for unset values.
func ConfigFrom(rc domain.ReliabilityConfig) Config {
	cfg := DefaultConfig()
	if rc.QualityThreshold > 0 && rc.QualityThreshold <= 1 {
		cfg.QualityThreshold = rc.QualityThreshold
	}
	if rc.MaxIterations > 0 {
		cfg.MaxIterations = rc.MaxIterations
	}
	if rc.MinImprovement > 0 {
		cfg.MinImprovement = rc.MinImprovement
	}
	if rc.SourceCharLimit > 0 {
		cfg.SourceCharLimit = rc.SourceCharLimit
	}
	if rc.OracleTimeout > 0 {
		cfg.OracleTimeout = rc.OracleTimeout
	}
	return cfg
}

// Options override the threshold and iteration budget for a single run.
// Zero values keep the controller configuration.
type Options struct {
	QualityThreshold float64
	MaxIterations    int
}

func (c Config) apply(opts Options) Config {
	if opts.QualityThreshold > 0 && opts.QualityThreshold <= 1 {
		c.QualityThreshold = opts.QualityThreshold
	}
	if opts.MaxIterations > 0 {
		c.MaxIterations = opts.MaxIterations
	}
	return c
}
