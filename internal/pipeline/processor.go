// Package pipeline processes uploaded documents end to end: transcription,
// redaction, classification, extraction and persistence of the result.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/cache"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/classifier"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/redact"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/reliability"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/oracle"
)

// DefaultMaxConcurrency bounds batch processing when unset.
const DefaultMaxConcurrency = 4

// Document is one input file.
type Document struct {
	Filename string
	Data     []byte
	MimeType string
}

// Options control a single request. A nil Reliability uses the configured default.
type Options struct {
	Reliability      *bool
	QualityThreshold float64
	MaxIterations    int
}

// Dependencies are the collaborators of a Processor. Cache, Redactor and
// Store are optional.
type Dependencies struct {
	Oracle     domain.ExtractionOracle
	Classifier *classifier.Classifier
	Controller *reliability.Controller
	Cache      *cache.Cache
	Redactor   *redact.Redactor
	Store      audit.Store
	Logger     *logrus.Logger
}

// Processor runs the document pipeline. It is safe for concurrent use.
type Processor struct {
	oracle             domain.ExtractionOracle
	classifier         *classifier.Classifier
	controller         *reliability.Controller
	cache              *cache.Cache
	redactor           *redact.Redactor
	store              audit.Store
	reliabilityEnabled bool
	batchSemaphore     chan struct{}
	logger             *logrus.Logger
}

// NewProcessor creates a processor.
func NewProcessor(deps Dependencies, cfg domain.PipelineConfig, reliabilityEnabled bool) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if deps.Oracle == nil {
		deps.Oracle = oracle.Unavailable{}
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.New(logger)
	}
	if deps.Controller == nil {
		deps.Controller = reliability.NewController(deps.Oracle, nil, nil, reliability.DefaultConfig(), logger)
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	return &Processor{
		oracle:             deps.Oracle,
		classifier:         deps.Classifier,
		controller:         deps.Controller,
		cache:              deps.Cache,
		redactor:           deps.Redactor,
		store:              deps.Store,
		reliabilityEnabled: reliabilityEnabled,
		batchSemaphore:     make(chan struct{}, maxConcurrency),
		logger:             logger,
	}
}

// Classifier returns the classifier used by the processor.
func (p *Processor) Classifier() *classifier.Classifier {
	return p.classifier
}

// CacheStats returns content cache statistics, or false when caching is off.
func (p *Processor) CacheStats() (cache.Stats, bool) {
	if p.cache == nil {
		return cache.Stats{}, false
	}
	return p.cache.Stats(), true
}

// Cache returns the content cache, which may be nil.
func (p *Processor) Cache() *cache.Cache {
	return p.cache
}

// OracleAvailable reports whether a credentialed oracle is configured.
func (p *Processor) OracleAvailable() bool {
	_, unavailable := p.oracle.(oracle.Unavailable)
	return !unavailable
}

// Store returns the audit store, which may be nil.
func (p *Processor) Store() audit.Store {
	return p.store
}

// Validate checks a document before any work is done.
func Validate(doc *Document) error {
	if len(doc.Data) == 0 {
		return domain.NewValidationError("file", domain.ErrEmptyDocument.Error(), doc.Filename)
	}
	if strings.TrimSpace(doc.MimeType) == "" || doc.MimeType == "application/octet-stream" {
		doc.MimeType = http.DetectContentType(doc.Data)
	}
	if !oracle.SupportedMimeType(doc.MimeType) {
		return domain.NewValidationError("mime_type", "unsupported media type", doc.MimeType)
	}
	return nil
}

// Process runs one document through the pipeline. Only invalid input is
// returned as an error; operational failures are reported on the result.
func (p *Processor) Process(ctx context.Context, doc Document, opts Options) (domain.DocumentResult, error) {
	started := time.Now()
	if err := Validate(&doc); err != nil {
		return domain.DocumentResult{}, err
	}

	result := domain.DocumentResult{
		DocumentID:     uuid.NewString(),
		Filename:       doc.Filename,
		ClassifiedType: domain.DocUnknown,
		Warnings:       []string{},
	}
	useLoop := p.reliabilityEnabled
	if opts.Reliability != nil {
		useLoop = *opts.Reliability
	}
	result.ReliabilityLoop.Enabled = useLoop

	log := p.logger.WithFields(logrus.Fields{
		"document_id": result.DocumentID,
		"filename":    doc.Filename,
		"mime_type":   doc.MimeType,
		"reliability": useLoop,
	})

	var key cache.Key
	if !useLoop && p.cache != nil {
		key = cache.KeyFor(doc.Data, doc.MimeType)
		if entry, ok := p.cache.Get(ctx, key); ok {
			log.WithField("hit_count", entry.HitCount).Info("Serving extraction from cache")
			result.ClassifiedType = entry.ClassifiedType
			result.Confidence = entry.Confidence
			result.ExtractedData = entry.ExtractedData
			result.Warnings = append(result.Warnings, entry.Warnings...)
			result.Cached = true
			if entry.Score != nil {
				result.ReliabilityLoop.FinalScore = entry.Score.Overall
				result.ReliabilityLoop.ScoreBreakdown = entry.Score
				result.ReliabilityLoop.MetThreshold = entry.Score.Overall >= p.threshold(opts)
			}
			return p.finish(ctx, result, started), nil
		}
	}

	text, err := p.transcribe(ctx, doc)
	if err != nil {
		log.WithError(err).Warn("Text extraction failed")
		result.Error = err.Error()
		result.ReliabilityLoop.Iterations = 1
		result.ReliabilityLoop.StoppedReason = domain.StopExtractionFailed
		if ctx.Err() != nil {
			result.ReliabilityLoop.StoppedReason = domain.StopCancelled
		}
		return p.finish(ctx, result, started), nil
	}

	if p.redactor.Enabled() {
		redacted := p.redactor.Redact(text)
		text = redacted.Text
		if redacted.Total > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Redacted %d patient identifiers", redacted.Total))
		}
	}

	classification := p.classifier.ClassifyDocument(text)
	result.Classification = &classification
	result.ClassifiedType = classification.PrimaryType
	result.Confidence = classification.PrimaryConfidence

	// The single pass is a one-iteration run, so it is evaluated and reports
	// failures the same way as the loop.
	maxIterations := 1
	if useLoop {
		maxIterations = opts.MaxIterations
	}
	loop := p.controller.Run(ctx, text, classification.PrimaryType, reliability.Options{
		QualityThreshold: opts.QualityThreshold,
		MaxIterations:    maxIterations,
	})
	result.ExtractedData = loop.FinalData
	result.Warnings = append(result.Warnings, loop.Warnings...)
	result.ReliabilityLoop = domain.ReliabilityLoopMetadata{
		Enabled:       useLoop,
		FinalScore:    loop.FinalScore.Overall,
		Iterations:    loop.Iterations,
		MetThreshold:  loop.MetThreshold,
		StoppedReason: loop.StoppedReason,
	}
	if loop.Scored() {
		score := loop.FinalScore
		result.ReliabilityLoop.ScoreBreakdown = &score
	}
	if useLoop {
		result.IterationHistory = loop.IterationHistory
	}

	cacheable := !useLoop
	switch loop.StoppedReason {
	case domain.StopExtractionFailed:
		log.Warn("Structured extraction failed, falling back to raw text")
		result.Warnings = append(result.Warnings, "Structured extraction failed; returning raw text")
		cacheable = false
	case domain.StopCancelled:
		result.Error = "cancelled"
		cacheable = false
	}

	if classification.IsComposite {
		result.ExtractedData = p.classifier.MergeExtractedData(result.ExtractedData, classification.ExtractedSections)
	}

	result = p.finish(ctx, result, started)

	if cacheable && p.cache != nil {
		p.cache.Put(ctx, key, &domain.CacheEntry{
			ClassifiedType:   result.ClassifiedType,
			Confidence:       result.Confidence,
			ExtractedData:    result.ExtractedData,
			TextLength:       len(text),
			Warnings:         result.Warnings,
			ProcessingTimeMs: result.ProcessingTimeMs,
			Score:            result.ReliabilityLoop.ScoreBreakdown,
		})
	}
	return result, nil
}

// ProcessText runs already-transcribed text through the pipeline.
func (p *Processor) ProcessText(ctx context.Context, filename, text string, opts Options) (domain.DocumentResult, error) {
	return p.Process(ctx, Document{Filename: filename, Data: []byte(text), MimeType: "text/plain; charset=utf-8"}, opts)
}

// ProcessBatch processes documents concurrently, bounded by the configured
// concurrency. Results are returned in input order; one document's failure
// never affects another.
func (p *Processor) ProcessBatch(ctx context.Context, docs []Document, opts Options) []domain.DocumentResult {
	results := make([]domain.DocumentResult, len(docs))
	var wg sync.WaitGroup

	p.logger.WithField("batch_size", len(docs)).Info("Starting batch document processing")

	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.processIsolated(ctx, docs[i], opts)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	p.logger.WithFields(logrus.Fields{
		"batch_size": len(docs),
		"failed":     failed,
	}).Info("Completed batch document processing")

	return results
}

func (p *Processor) processIsolated(ctx context.Context, doc Document, opts Options) (result domain.DocumentResult) {
	failed := func(msg string) domain.DocumentResult {
		return domain.DocumentResult{
			DocumentID:     uuid.NewString(),
			Filename:       doc.Filename,
			ClassifiedType: domain.DocUnknown,
			Warnings:       []string{},
			Error:          msg,
			CreatedAt:      time.Now().UTC(),
		}
	}

	select {
	case p.batchSemaphore <- struct{}{}:
		defer func() { <-p.batchSemaphore }()
	case <-ctx.Done():
		return failed(ctx.Err().Error())
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{"filename": doc.Filename, "panic": r}).Error("Document processing panicked")
			result = failed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	res, err := p.Process(ctx, doc, opts)
	if err != nil {
		return failed(err.Error())
	}
	return res
}

func (p *Processor) transcribe(ctx context.Context, doc Document) (string, error) {
	timeout := p.controller.Config().OracleTimeout
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := p.oracle.ExtractText(callCtx, doc.Data, doc.MimeType)
	if err != nil {
		return "", fmt.Errorf("text extraction: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text extraction: %w", domain.ErrEmptyDocument)
	}
	return text, nil
}

// finish stamps timing and persists the result. Storage failures are logged
// and reported as a warning.
func (p *Processor) finish(ctx context.Context, result domain.DocumentResult, started time.Time) domain.DocumentResult {
	result.ProcessingTimeMs = time.Since(started).Milliseconds()
	result.CreatedAt = time.Now().UTC()

	if p.store != nil {
		if err := p.store.Save(context.WithoutCancel(ctx), result); err != nil {
			p.logger.WithError(err).WithField("document_id", result.DocumentID).Warn("Failed to persist run")
			result.Warnings = append(result.Warnings, "Run could not be saved to the audit store")
		}
	}

	p.logger.WithFields(logrus.Fields{
		"document_id":        result.DocumentID,
		"classified_type":    result.ClassifiedType,
		"confidence":         result.Confidence,
		"cached":             result.Cached,
		"processing_time_ms": result.ProcessingTimeMs,
		"stopped_reason":     result.ReliabilityLoop.StoppedReason,
	}).Info("Document processed")
	return result
}

func (p *Processor) threshold(opts Options) float64 {
	if opts.QualityThreshold > 0 {
		return opts.QualityThreshold
	}
	return p.controller.Config().QualityThreshold
}
