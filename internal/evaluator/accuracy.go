package evaluator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/jsonscan"
)

const (
	// DefaultAccuracy is used when the oracle cannot produce a usable score.
	DefaultAccuracy = 0.7
	// EmptyExtractionAccuracy is used when nothing was extracted.
	EmptyExtractionAccuracy = 0.5
	// accuracySourceLimit bounds the source text sent for verification.
	accuracySourceLimit = 4000
)

// CheckAccuracy asks the oracle how faithfully data reflects the source text.
func (e *Evaluator) CheckAccuracy(ctx context.Context, sourceText string, data domain.ExtractedClinicalData) float64 {
	if data.IsEmpty() {
		return EmptyExtractionAccuracy
	}
	if e.oracle == nil {
		return DefaultAccuracy
	}

	resp, err := e.oracle.Score(ctx, accuracyPrompt(sourceText, data))
	if err != nil {
		e.logger.WithError(err).Warn("Accuracy scoring failed, using default")
		return DefaultAccuracy
	}
	score, ok := parseAccuracy(resp)
	if !ok {
		e.logger.WithField("response", Truncate(resp, 200)).Warn("Unparseable accuracy response, using default")
		return DefaultAccuracy
	}
	return score
}

func accuracyPrompt(sourceText string, data domain.ExtractedClinicalData) string {
	var b strings.Builder
	b.WriteString("Compare the extracted data against the source document. ")
	b.WriteString("Rate how accurately each extracted value matches what the document states, ")
	b.WriteString("penalizing values that are wrong or not present in the source.\n")
	b.WriteString("Respond with JSON only: {\"accuracy\": <number between 0 and 1>}\n\n")
	b.WriteString("SOURCE DOCUMENT:\n")
	b.WriteString(Truncate(sourceText, accuracySourceLimit))
	b.WriteString("\n\nEXTRACTED DATA:\n")
	b.WriteString(data.JSON())
	return b.String()
}

func parseAccuracy(resp string) (float64, bool) {
	var parsed map[string]any
	if err := jsonscan.DecodeFirstObject(resp, &parsed); err == nil {
		for _, key := range []string{"accuracy", "score"} {
			if v, ok := parsed[key]; ok {
				if f, ok := toFloat(v); ok {
					return clamp01(f), true
				}
			}
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(jsonscan.StripCodeFences(resp)), 64)
	if err != nil {
		return 0, false
	}
	return clamp01(f), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return fmt.Sprintf("%s...[truncated]", string(runes[:n]))
}
