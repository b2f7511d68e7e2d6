// Package evaluator scores extracted clinical data against the rubric for its
// document type and turns the shortfalls into feedback for the next attempt.
package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/rubric"
)

// Tier weights for completeness.
const (
	requiredWeight  = 1.0
	importantWeight = 0.7
	optionalWeight  = 0.3
	// missingOptionalCredit is the share of an optional field's weight earned when it is absent.
	missingOptionalCredit = 0.24
)

// Evaluator computes evaluation scores and feedback. It is safe for concurrent use.
type Evaluator struct {
	oracle  domain.ExtractionOracle
	rubrics *rubric.Registry
	logger  *logrus.Logger
}

// New creates an evaluator.
func New(oracle domain.ExtractionOracle, rubrics *rubric.Registry, logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	if rubrics == nil {
		rubrics = rubric.Default()
	}
	return &Evaluator{oracle: oracle, rubrics: rubrics, logger: logger}
}

// CheckCompleteness returns the weighted share of rubric fields present in data.
// It is 0 for an empty rubric.
func CheckCompleteness(rb rubric.Rubric, data domain.ExtractedClinicalData) float64 {
	if rb.IsEmpty() {
		return 0
	}
	var present, total float64
	for _, f := range rb.Required {
		total += requiredWeight
		if data.Has(f) {
			present += requiredWeight
		}
	}
	for _, f := range rb.Important {
		total += importantWeight
		if data.Has(f) {
			present += importantWeight
		}
	}
	for _, f := range rb.Optional {
		total += optionalWeight
		if data.Has(f) {
			present += optionalWeight
		} else {
			present += optionalWeight * missingOptionalCredit
		}
	}
	return present / total
}

// Evaluate composes the four checks into a score and derives feedback.
func (e *Evaluator) Evaluate(ctx context.Context, sourceText string, dt domain.DocumentType, data domain.ExtractedClinicalData) (domain.EvaluationScore, domain.EvaluationFeedback) {
	rb := e.rubrics.For(dt)

	completeness := CheckCompleteness(rb, data)
	accuracy := e.CheckAccuracy(ctx, sourceText, data)
	validity, validityIssues := CheckClinicalValidity(dt, data)
	consistency, consistencyIssues := CheckConsistency(dt, data)

	score := domain.NewEvaluationScore(completeness, accuracy, consistency, validity)
	feedback := buildFeedback(rb, data, score)
	feedback.Issues = append(feedback.Issues, validityIssues...)
	feedback.Issues = append(feedback.Issues, consistencyIssues...)

	e.logger.WithFields(logrus.Fields{
		"document_type":     dt,
		"overall":           score.Overall,
		"completeness":      completeness,
		"accuracy":          accuracy,
		"clinical_validity": validity,
		"consistency":       consistency,
		"missing_fields":    len(feedback.MissingFields),
	}).Debug("Extraction evaluated")

	return score, feedback
}

func buildFeedback(rb rubric.Rubric, data domain.ExtractedClinicalData, score domain.EvaluationScore) domain.EvaluationFeedback {
	feedback := domain.EvaluationFeedback{
		OverallScore:   score.Overall,
		Issues:         []domain.Issue{},
		MissingFields:  []domain.Field{},
		PriorityFields: []domain.Field{},
		Suggestions:    []string{},
	}

	for _, f := range rb.Required {
		if data.Has(f) {
			continue
		}
		feedback.Issues = append(feedback.Issues, domain.Issue{
			Severity:    domain.SeverityCritical,
			Field:       f,
			Description: fmt.Sprintf("Required field %q is missing", f),
		})
		feedback.MissingFields = append(feedback.MissingFields, f)
		feedback.PriorityFields = append(feedback.PriorityFields, f)
	}
	for _, f := range rb.Important {
		if data.Has(f) {
			continue
		}
		feedback.Issues = append(feedback.Issues, domain.Issue{
			Severity:    domain.SeverityMajor,
			Field:       f,
			Description: fmt.Sprintf("Important field %q is missing", f),
		})
		feedback.MissingFields = append(feedback.MissingFields, f)
	}
	for _, f := range rb.Optional {
		if data.Has(f) {
			continue
		}
		feedback.Issues = append(feedback.Issues, domain.Issue{
			Severity:    domain.SeverityMinor,
			Field:       f,
			Description: fmt.Sprintf("Optional field %q was not found", f),
		})
	}

	if len(feedback.MissingFields) > 0 {
		names := make([]string, len(feedback.MissingFields))
		for i, f := range feedback.MissingFields {
			names[i] = string(f)
		}
		feedback.Suggestions = append(feedback.Suggestions,
			"Look for and extract the missing fields: "+strings.Join(names, ", "))
	}
	return feedback
}
