// Package reliability runs the quality-gated extraction loop: extract,
// evaluate, and decide whether another feedback-driven attempt is worthwhile.
package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/evaluator"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/rubric"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/jsonscan"
)

// ErrUnparseableResponse is returned when the oracle response holds no JSON object.
var ErrUnparseableResponse = errors.New("oracle response contains no JSON object")

// Controller drives the extraction loop for one document at a time. It holds
// no per-run state and is safe for concurrent use.
type Controller struct {
	oracle    domain.ExtractionOracle
	evaluator *evaluator.Evaluator
	rubrics   *rubric.Registry
	config    Config
	logger    *logrus.Logger
}

// NewController wires a controller. A nil registry uses the builtin rubrics.
func NewController(oracle domain.ExtractionOracle, ev *evaluator.Evaluator, rubrics *rubric.Registry, cfg Config, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	if rubrics == nil {
		rubrics = rubric.Default()
	}
	if ev == nil {
		ev = evaluator.New(oracle, rubrics, logger)
	}
	return &Controller{
		oracle:    oracle,
		evaluator: ev,
		rubrics:   rubrics,
		config:    cfg,
		logger:    logger,
	}
}

// Config returns the controller defaults.
func (c *Controller) Config() Config {
	return c.config
}

// Run executes the loop. It never fails: oracle errors, unparseable
// responses and cancellation are reported through StoppedReason.
func (c *Controller) Run(ctx context.Context, source string, dt domain.DocumentType, opts Options) domain.ReliabilityLoopResult {
	cfg := c.config.apply(opts)
	basePrompt := c.rubrics.PromptFor(dt, evaluator.Truncate(source, cfg.SourceCharLimit))

	log := c.logger.WithFields(logrus.Fields{
		"document_type":  dt,
		"threshold":      cfg.QualityThreshold,
		"max_iterations": cfg.MaxIterations,
	})

	result := domain.ReliabilityLoopResult{IterationHistory: []domain.IterationRecord{}}
	prompt := basePrompt
	var previous *float64

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			return c.stop(result, cfg, domain.StopCancelled, source)
		}

		started := time.Now()
		data, warnings, err := c.extract(ctx, prompt, cfg.OracleTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.WithField("iteration", iteration).Info("Reliability loop cancelled during extraction")
				return c.stop(result, cfg, domain.StopCancelled, source)
			}
			log.WithError(err).WithField("iteration", iteration).Warn("Extraction failed, falling back to raw text")
			result.IterationHistory = append(result.IterationHistory, domain.IterationRecord{
				Iteration:     iteration,
				ExtractedData: fallbackData(source),
				PromptHash:    hashPrompt(prompt),
				DurationMs:    time.Since(started).Milliseconds(),
				Error:         err.Error(),
			})
			return c.stop(result, cfg, domain.StopExtractionFailed, source)
		}
		for _, w := range warnings {
			log.WithField("iteration", iteration).Debug(w)
			if !slices.Contains(result.Warnings, w) {
				result.Warnings = append(result.Warnings, w)
			}
		}

		evalCtx, cancel := context.WithTimeout(ctx, cfg.OracleTimeout)
		score, feedback := c.evaluator.Evaluate(evalCtx, source, dt, data)
		cancel()
		if ctx.Err() != nil {
			return c.stop(result, cfg, domain.StopCancelled, source)
		}

		result.IterationHistory = append(result.IterationHistory, domain.IterationRecord{
			Iteration:     iteration,
			ExtractedData: data,
			Score:         score,
			Feedback:      feedback,
			PromptHash:    hashPrompt(prompt),
			DurationMs:    time.Since(started).Milliseconds(),
		})

		log.WithFields(logrus.Fields{
			"iteration":      iteration,
			"overall":        score.Overall,
			"missing_fields": len(feedback.MissingFields),
		}).Info("Reliability loop iteration scored")

		decision := decide(score.Overall, previous, iteration, cfg.QualityThreshold, cfg.MaxIterations, cfg.MinImprovement)
		if !decision.Continue {
			return c.stop(result, cfg, decision.Reason, source)
		}

		current := score.Overall
		previous = &current
		prompt = evaluator.BuildOptimizedPrompt(basePrompt, feedback, data, iteration, cfg.QualityThreshold)
	}
}

func (c *Controller) extract(ctx context.Context, prompt string, timeout time.Duration) (domain.ExtractedClinicalData, []string, error) {
	if c.oracle == nil {
		return domain.ExtractedClinicalData{}, nil, errors.New("no extraction oracle configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.oracle.ExtractStructured(callCtx, prompt)
	if err != nil {
		return domain.ExtractedClinicalData{}, nil, fmt.Errorf("structured extraction: %w", err)
	}

	var raw map[string]any
	if err := jsonscan.DecodeFirstObject(resp, &raw); err != nil {
		return domain.ExtractedClinicalData{}, nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	data, warnings := domain.ParseExtractedData(raw)
	return data, warnings, nil
}

// stop finalizes the result from the last recorded iteration.
func (c *Controller) stop(result domain.ReliabilityLoopResult, cfg Config, reason domain.StopReason, source string) domain.ReliabilityLoopResult {
	result.StoppedReason = reason
	result.Iterations = len(result.IterationHistory)

	var lastScored *domain.IterationRecord
	for i := len(result.IterationHistory) - 1; i >= 0; i-- {
		if result.IterationHistory[i].Error == "" {
			lastScored = &result.IterationHistory[i]
			break
		}
	}
	if lastScored != nil {
		result.FinalScore = lastScored.Score
	}

	if n := len(result.IterationHistory); n > 0 {
		result.FinalData = result.IterationHistory[n-1].ExtractedData
	} else {
		result.FinalData = fallbackData(source)
	}
	result.MetThreshold = lastScored != nil && result.FinalScore.Overall >= cfg.QualityThreshold
	return result
}

func fallbackData(source string) domain.ExtractedClinicalData {
	runes := []rune(source)
	if len(runes) > fallbackTextLimit {
		runes = runes[:fallbackTextLimit]
	}
	return domain.ExtractedClinicalData{RawText: string(runes)}
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}
