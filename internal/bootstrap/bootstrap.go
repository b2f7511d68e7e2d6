// Package bootstrap assembles the document pipeline from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/cache"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/classifier"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/evaluator"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/redact"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/reliability"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/rubric"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/oracle"
)

// Components is a wired pipeline plus the resources it owns.
type Components struct {
	Processor *pipeline.Processor
	Oracle    domain.ExtractionOracle
	Cache     *cache.Cache
	Store     audit.Store
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	oracle domain.ExtractionOracle
}

// WithOracle replaces the oracle built from configuration.
func WithOracle(o domain.ExtractionOracle) Option {
	return func(opts *options) { opts.oracle = o }
}

// Build creates every pipeline collaborator from cfg. A missing API key
// yields the unavailable oracle; an unreachable Redis is skipped with a
// warning. Audit store failures are returned.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts ...Option) (*Components, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	extractionOracle := o.oracle
	if extractionOracle == nil {
		extractionOracle = newOracle(cfg.Oracle, logger)
	}

	memory, err := cache.NewMemoryCache(cfg.Cache.MaxItems, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	var redisTier *cache.RedisTier
	if cfg.Cache.RedisURL != "" {
		redisTier, err = cache.NewRedisTier(ctx, cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis cache tier unavailable, using memory only")
			redisTier = nil
		}
	}
	contentCache := cache.New(memory, redisTier, logger)

	store, err := audit.Open(ctx, cfg.Audit, logger)
	if err != nil {
		contentCache.Close()
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	redactor := redact.New(cfg.Redaction)
	rubrics := rubric.Default()
	ev := evaluator.New(extractionOracle, rubrics, logger)
	controller := reliability.NewController(extractionOracle, ev, rubrics, reliability.ConfigFrom(cfg.Reliability), logger)

	processor := pipeline.NewProcessor(pipeline.Dependencies{
		Oracle:     extractionOracle,
		Classifier: classifier.New(logger),
		Controller: controller,
		Cache:      contentCache,
		Redactor:   redactor,
		Store:      store,
		Logger:     logger,
	}, cfg.Pipeline, cfg.Reliability.Enabled)

	logger.WithFields(logrus.Fields{
		"reliability": cfg.Reliability.Enabled,
		"redis":       redisTier != nil,
		"audit":       cfg.Audit.Driver,
		"redaction":   redactor.Enabled(),
	}).Info("Pipeline initialized")

	return &Components{
		Processor: processor,
		Oracle:    extractionOracle,
		Cache:     contentCache,
		Store:     store,
	}, nil
}

// Close releases the cache and the audit store.
func (c *Components) Close() error {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

func newOracle(cfg domain.OracleConfig, logger *logrus.Logger) domain.ExtractionOracle {
	o, err := oracle.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Oracle not configured; OCR and structured extraction are disabled")
		return oracle.Unavailable{}
	}
	logger.WithField("model", o.Model()).Info("Oracle configured")
	return o
}
