package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

func TestShouldContinue(t *testing.T) {
	prev := func(v float64) *float64 { return &v }

	tests := []struct {
		name          string
		current       float64
		previous      *float64
		iteration     int
		maxIterations int
		expected      Decision
	}{
		{"threshold met", 0.96, nil, 1, 3, Decision{Reason: domain.StopThresholdMet}},
		{"threshold met exactly", 0.95, prev(0.5), 2, 3, Decision{Reason: domain.StopThresholdMet}},
		{"threshold beats max iterations", 0.97, prev(0.96), 3, 3, Decision{Reason: domain.StopThresholdMet}},
		{"threshold met on second pass", 0.97, prev(0.80), 2, 3, Decision{Reason: domain.StopThresholdMet}},
		{"max iterations", 0.80, prev(0.70), 3, 3, Decision{Reason: domain.StopMaxIterations}},
		{"max iterations beats improvement", 0.80, prev(0.80), 3, 3, Decision{Reason: domain.StopMaxIterations}},
		{"max iterations with small gain", 0.60, prev(0.58), 3, 3, Decision{Reason: domain.StopMaxIterations}},
		{"insufficient improvement", 0.82, prev(0.80), 2, 3, Decision{Reason: domain.StopInsufficientImprovement}},
		{"gain of one hundredth", 0.61, prev(0.60), 1, 5, Decision{Reason: domain.StopInsufficientImprovement}},
		{"just under minimum gain", 0.829, prev(0.80), 2, 5, Decision{Reason: domain.StopInsufficientImprovement}},
		{"regression", 0.70, prev(0.80), 2, 3, Decision{Reason: domain.StopInsufficientImprovement}},
		{"exact minimum gain from 0.80", 0.83, prev(0.80), 1, 5, Decision{Continue: true}},
		{"exact minimum gain from 0.60", 0.63, prev(0.60), 1, 5, Decision{Continue: true}},
		{"first iteration continues", 0.40, nil, 1, 3, Decision{Continue: true}},
		{"enough improvement continues", 0.85, prev(0.80), 2, 3, Decision{Continue: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldContinue(tt.current, tt.previous, tt.iteration, 0.95, tt.maxIterations))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(domain.ReliabilityConfig{QualityThreshold: 0.9, MaxIterations: 5})
	assert.Equal(t, 0.9, cfg.QualityThreshold)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, DefaultMinImprovement, cfg.MinImprovement)
	assert.Equal(t, DefaultOracleTimeout, cfg.OracleTimeout)

	assert.Equal(t, DefaultConfig(), ConfigFrom(domain.ReliabilityConfig{QualityThreshold: 3}))
}
