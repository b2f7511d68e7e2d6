package evaluator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

func sampleFeedback() domain.EvaluationFeedback {
	return domain.EvaluationFeedback{
		OverallScore: 0.72,
		Issues: []domain.Issue{
			{Severity: domain.SeverityCritical, Field: domain.FieldGrade, Description: `Required field "grade" is missing`},
			{Severity: domain.SeverityMajor, Field: domain.FieldMargins, Description: `Important field "margins" is missing`},
			{Severity: domain.SeverityMinor, Field: domain.FieldDate, Description: `Date "someday" is not a recognizable date`},
		},
		MissingFields:  []domain.Field{domain.FieldGrade, domain.FieldMargins},
		PriorityFields: []domain.Field{domain.FieldGrade},
		Suggestions:    []string{"Look for and extract the missing fields: grade, margins"},
	}
}

func TestBuildOptimizedPrompt(t *testing.T) {
	base := "Extract pathology data.\nDOCUMENT:\nAdenocarcinoma, grade 2."
	previous := domain.ExtractedClinicalData{Histology: "adenocarcinoma"}

	prompt := BuildOptimizedPrompt(base, sampleFeedback(), previous, 1, 0.95)

	assert.True(t, strings.HasPrefix(prompt, base))
	assert.Contains(t, prompt, "attempt 2")
	assert.Contains(t, prompt, "scored 0.72; the target is 0.95")
	assert.Contains(t, prompt, "CRITICAL ISSUES")
	assert.Contains(t, prompt, "MAJOR ISSUES")
	assert.Contains(t, prompt, "MISSING FIELDS:\n- grade\n- margins\n")
	assert.Contains(t, prompt, `"histology":"adenocarcinoma"`)
	assert.Contains(t, prompt, "Address every issue listed above")
	assert.Contains(t, prompt, "Match source values exactly")
	assert.Less(t, strings.Index(prompt, "CRITICAL ISSUES"), strings.Index(prompt, "MAJOR ISSUES"))
}

func TestBuildOptimizedPrompt_Deterministic(t *testing.T) {
	previous := domain.ExtractedClinicalData{
		Histology:  "adenocarcinoma",
		IHCMarkers: map[string]string{"ER": "positive", "PR": "negative", "HER2": "1+"},
	}
	first := BuildOptimizedPrompt("base", sampleFeedback(), previous, 1, 0.95)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildOptimizedPrompt("base", sampleFeedback(), previous, 1, 0.95))
	}
}

func TestBuildOptimizedPrompt_NoIssues(t *testing.T) {
	prompt := BuildOptimizedPrompt("base", domain.EvaluationFeedback{OverallScore: 0.9}, domain.ExtractedClinicalData{}, 2, 0.95)

	assert.NotContains(t, prompt, "CRITICAL ISSUES")
	assert.NotContains(t, prompt, "MISSING FIELDS")
	assert.Contains(t, prompt, "PREVIOUS ATTEMPT")
}

func TestBuildOptimizedPrompt_TruncatesPreviousAttempt(t *testing.T) {
	previous := domain.ExtractedClinicalData{RawText: strings.Repeat("x", previousAttemptLimit*2)}
	prompt := BuildOptimizedPrompt("base", domain.EvaluationFeedback{}, previous, 1, 0.95)

	assert.Contains(t, prompt, "...[truncated]")
	assert.Less(t, len(prompt), previousAttemptLimit*2)
}
