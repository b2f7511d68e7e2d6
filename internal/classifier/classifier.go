// Package classifier assigns a primary document type to clinical text, detects
// the subspecialty content it carries, and decomposes composite documents into
// sections whose fields are merged into the base extraction.
package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// contentScoreThreshold is the minimum detection score for a content tag.
const contentScoreThreshold = 3

// Classifier is stateless apart from its logger and safe for concurrent use.
type Classifier struct {
	logger *logrus.Logger
}

// New creates a classifier.
func New(logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Classifier{logger: logger}
}

// Classify returns the document type with the most matching patterns and a
// confidence of min(count / (patterns * 0.3), 1). Ties go to the type declared
// first in domain.AllDocumentTypes. No matches yields unknown with confidence 0.
func (c *Classifier) Classify(text string) (domain.DocumentType, float64) {
	bestType := domain.DocUnknown
	bestCount := 0
	bestTotal := 0

	for _, dt := range domain.AllDocumentTypes() {
		patterns := typePatterns[dt]
		if len(patterns) == 0 {
			continue
		}
		count := 0
		for _, p := range patterns {
			if p.MatchString(text) {
				count++
			}
		}
		if count > bestCount {
			bestType, bestCount, bestTotal = dt, count, len(patterns)
		}
	}

	if bestCount == 0 {
		return domain.DocUnknown, 0
	}
	confidence := math.Min(float64(bestCount)/(float64(bestTotal)*0.3), 1.0)

	c.logger.WithFields(logrus.Fields{
		"document_type": bestType,
		"matches":       bestCount,
		"confidence":    confidence,
	}).Debug("Document classified")

	return bestType, confidence
}

// DetectSubspecialtyContent scores every content tag as 2 per matching pattern
// plus 1 per keyword found in the lowercased text, and returns the tags scoring
// at least 3 in declaration order.
func (c *Classifier) DetectSubspecialtyContent(text string) []domain.SubspecialtyContent {
	lower := strings.ToLower(text)
	var tags []domain.SubspecialtyContent
	for _, tag := range domain.AllSubspecialtyContent() {
		if contentScore(contentRules[tag], text, lower) >= contentScoreThreshold {
			tags = append(tags, tag)
		}
	}
	return tags
}

func contentScore(rule contentRule, text, lower string) int {
	score := 0
	for _, p := range rule.patterns {
		if p.MatchString(text) {
			score += 2
		}
	}
	for _, kw := range rule.keywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	return score
}

// IsComposite reports whether the detected content spans enough subspecialties
// to need section-level decomposition.
func IsComposite(tags []domain.SubspecialtyContent) bool {
	if len(tags) >= 3 {
		return true
	}
	has := make(map[domain.SubspecialtyContent]bool, len(tags))
	for _, t := range tags {
		has[t] = true
	}
	treatment := has[domain.ContentTreatmentHistory] || has[domain.ContentMedications]
	if (has[domain.ContentPathologySummary] || has[domain.ContentStagingInfo]) && treatment && has[domain.ContentFollowUpPlan] {
		return true
	}
	return has[domain.ContentStagingInfo] && has[domain.ContentRadiologySummary] && treatment
}

// ClassifyDocument runs type classification and content detection and, for
// composite documents, section extraction.
func (c *Classifier) ClassifyDocument(text string) domain.DocumentClassification {
	dt, confidence := c.Classify(text)
	tags := c.DetectSubspecialtyContent(text)
	composite := IsComposite(tags)

	result := domain.DocumentClassification{
		PrimaryType:       dt,
		PrimaryConfidence: confidence,
		ContainsContent:   tags,
		IsComposite:       composite,
	}
	if composite {
		result.ExtractedSections = c.ExtractSections(text, tags)
	}
	result.ClassificationReason = classificationReason(dt, confidence, tags, composite)

	c.logger.WithFields(logrus.Fields{
		"document_type": dt,
		"confidence":    confidence,
		"content_tags":  len(tags),
		"composite":     composite,
	}).Info("Document classification completed")

	return result
}

func classificationReason(dt domain.DocumentType, confidence float64, tags []domain.SubspecialtyContent, composite bool) string {
	var b strings.Builder
	if dt == domain.DocUnknown {
		b.WriteString("No document type patterns matched")
	} else {
		fmt.Fprintf(&b, "Classified as %s with confidence %.2f", dt, confidence)
	}
	if len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "; detected content: %s", strings.Join(names, ", "))
	}
	if composite {
		b.WriteString("; composite document")
	}
	return b.String()
}
