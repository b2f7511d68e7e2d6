// Package oracle implements the external text-understanding capability used
// by the extraction pipeline: OCR of uploaded documents, structured field
// extraction and accuracy scoring, backed by the Anthropic Messages API.
package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_20250514)

const (
	ocrSystemPrompt        = "You transcribe clinical documents. Return the full document text verbatim, preserving line breaks and tables as plain text. Do not summarize or add commentary."
	extractionSystemPrompt = "You extract structured clinical data from oncology documents for a tumor board. Return strict JSON only and never invent values."
	scoringSystemPrompt    = "You audit clinical data extractions against their source documents. Return strict JSON only."
)

var (
	// ErrNotConfigured is returned by every call of an oracle without credentials.
	ErrNotConfigured = errors.New("oracle not configured")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("oracle circuit breaker is open")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("oracle returned an empty response")
)

// Messager is the subset of the Anthropic client used here.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClientCreator builds a Messager for an API key.
type ClientCreator func(apiKey string) Messager

func defaultClientCreator(apiKey string) Messager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient ClientCreator = defaultClientCreator

// AnthropicOracle implements domain.ExtractionOracle. Calls are rate limited
// and guarded by a circuit breaker; they are never retried here.
type AnthropicOracle struct {
	messages  Messager
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger
}

// New creates an oracle from configuration.
func New(cfg domain.OracleConfig, logger *logrus.Logger) (*AnthropicOracle, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	return NewWithMessager(newAnthropicClient(apiKey), cfg, logger), nil
}

// NewWithMessager creates an oracle around an existing client.
func NewWithMessager(messages Messager, cfg domain.OracleConfig, logger *logrus.Logger) *AnthropicOracle {
	if logger == nil {
		logger = logrus.New()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 5
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 60 * time.Second
	}

	o := &AnthropicOracle{
		messages:  messages,
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "anthropic",
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Oracle circuit breaker state changed")
		},
	})
	return o
}

// Model returns the model name used for requests.
func (o *AnthropicOracle) Model() string {
	return o.model
}

// ExtractText returns the text of a document. Plain text passes through
// without a model call; PDFs and images are transcribed by the model.
func (o *AnthropicOracle) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if text, ok, err := PassthroughText(data, mimeType); ok || err != nil {
		return text, err
	}

	var block anthropic.ContentBlockParamUnion
	encoded := base64.StdEncoding.EncodeToString(data)
	switch {
	case mimeType == "application/pdf":
		block = anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: encoded})
	case IsImage(mimeType):
		block = anthropic.NewImageBlockBase64(mimeType, encoded)
	default:
		return "", domain.NewValidationError("mime_type", "unsupported media type", mimeType)
	}

	return o.call(ctx, "ocr", ocrSystemPrompt,
		block, anthropic.NewTextBlock("Transcribe this document."))
}

// ExtractStructured sends an extraction prompt and returns the raw model text.
func (o *AnthropicOracle) ExtractStructured(ctx context.Context, prompt string) (string, error) {
	return o.call(ctx, "extract", extractionSystemPrompt, anthropic.NewTextBlock(prompt))
}

// Score sends a verification prompt and returns the raw model text.
func (o *AnthropicOracle) Score(ctx context.Context, prompt string) (string, error) {
	return o.call(ctx, "score", scoringSystemPrompt, anthropic.NewTextBlock(prompt))
}

func (o *AnthropicOracle) call(ctx context.Context, operation, system string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limiter: %w", err)
	}

	start := time.Now()
	result, err := o.breaker.Execute(func() (interface{}, error) {
		resp, err := o.messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(o.model),
			MaxTokens:   o.maxTokens,
			System:      []anthropic.TextBlockParam{{Text: system}},
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
			Temperature: anthropic.Float(0),
		})
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		for _, b := range resp.Content {
			if b.Type == "text" {
				sb.WriteString(b.Text)
			}
		}
		return sb.String(), nil
	})

	fields := logrus.Fields{
		"operation":  operation,
		"model":      o.model,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		o.logger.WithFields(fields).WithError(err).Warn("Oracle call failed")
		return "", fmt.Errorf("oracle %s: %w", operation, err)
	}

	text := strings.TrimSpace(result.(string))
	if text == "" {
		o.logger.WithFields(fields).Warn("Oracle returned empty response")
		return "", fmt.Errorf("oracle %s: %w", operation, ErrEmptyResponse)
	}
	fields["response_chars"] = len(text)
	o.logger.WithFields(fields).Debug("Oracle call completed")
	return text, nil
}

// PassthroughText decodes text documents that need no transcription. ok is
// false for media types that require the model.
func PassthroughText(data []byte, mimeType string) (text string, ok bool, err error) {
	if len(data) == 0 {
		return "", false, domain.ErrEmptyDocument
	}
	base, _, _ := strings.Cut(mimeType, ";")
	if strings.HasPrefix(strings.TrimSpace(base), "text/") {
		return string(data), true, nil
	}
	return "", false, nil
}

// IsImage reports whether the media type is an image the model accepts.
func IsImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// SupportedMimeType reports whether documents of this media type can be processed.
func SupportedMimeType(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	return strings.HasPrefix(base, "text/") || base == "application/pdf" || IsImage(base)
}
