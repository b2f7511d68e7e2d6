package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/rubric"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) ExtractStructured(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) Score(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestCheckCompleteness(t *testing.T) {
	rb := rubric.Rubric{Required: []domain.Field{domain.FieldHistology, domain.FieldGrade}}

	t.Run("half of required present", func(t *testing.T) {
		got := CheckCompleteness(rb, domain.ExtractedClinicalData{Histology: "adenocarcinoma"})
		assert.InDelta(t, 0.5, got, 1e-9)
	})

	t.Run("empty rubric", func(t *testing.T) {
		assert.Equal(t, 0.0, CheckCompleteness(rubric.Rubric{}, domain.ExtractedClinicalData{Histology: "x"}))
	})

	t.Run("tier weights", func(t *testing.T) {
		tiered := rubric.Rubric{
			Required:  []domain.Field{domain.FieldHistology},
			Important: []domain.Field{domain.FieldMargins},
			Optional:  []domain.Field{domain.FieldDate},
		}
		data := domain.ExtractedClinicalData{Histology: "adenocarcinoma"}
		// 1.0 present, 0.7 missing, optional missing earns 0.3*0.24
		expected := (1.0 + 0.3*0.24) / 2.0
		assert.InDelta(t, expected, CheckCompleteness(tiered, data), 1e-9)

		data.Margins = "negative"
		data.Date = "2024-01-10"
		assert.InDelta(t, 1.0, CheckCompleteness(tiered, data), 1e-9)
	})

	t.Run("bounded for every builtin rubric", func(t *testing.T) {
		reg := rubric.Default()
		for _, dt := range reg.Types() {
			got := CheckCompleteness(reg.For(dt), domain.ExtractedClinicalData{})
			assert.GreaterOrEqual(t, got, 0.0, dt)
			assert.LessOrEqual(t, got, 1.0, dt)
		}
	})
}

func TestEvaluate_MissingRequiredField(t *testing.T) {
	reg := rubric.NewRegistry()
	reg.Register(domain.DocPathology, rubric.Rubric{
		Required: []domain.Field{domain.FieldHistology, domain.FieldGrade},
	})
	oracle := new(mockOracle)
	oracle.On("Score", mock.Anything, mock.AnythingOfType("string")).Return(`{"accuracy": 0.9}`, nil).Once()

	ev := New(oracle, reg, quietLogger())
	data := domain.ExtractedClinicalData{Histology: "adenocarcinoma"}

	score, feedback := ev.Evaluate(context.Background(), "Adenocarcinoma of the colon.", domain.DocPathology, data)

	assert.InDelta(t, 0.5, score.Completeness, 1e-9)
	assert.InDelta(t, 0.9, score.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, score.ClinicalValidity, 1e-9)
	// carcinoma without a grade
	assert.InDelta(t, 0.85, score.Consistency, 1e-9)
	assert.InDelta(t, 0.30*0.5+0.40*0.9+0.15*1.0+0.15*0.85, score.Overall, 1e-9)
	assert.Equal(t, score.Overall, feedback.OverallScore)

	require.NotEmpty(t, feedback.Issues)
	assert.Equal(t, domain.SeverityCritical, feedback.Issues[0].Severity)
	assert.Equal(t, domain.FieldGrade, feedback.Issues[0].Field)
	assert.Equal(t, []domain.Field{domain.FieldGrade}, feedback.MissingFields)
	assert.Equal(t, []domain.Field{domain.FieldGrade}, feedback.PriorityFields)
	require.Len(t, feedback.Suggestions, 1)
	assert.Contains(t, feedback.Suggestions[0], "grade")

	oracle.AssertExpectations(t)
}

func TestEvaluate_CompleteExtractionHasNoIssues(t *testing.T) {
	reg := rubric.NewRegistry()
	reg.Register(domain.DocRadiology, rubric.Rubric{
		Required:  []domain.Field{domain.FieldFindings, domain.FieldImpression},
		Important: []domain.Field{domain.FieldMeasurements},
	})
	oracle := new(mockOracle)
	oracle.On("Score", mock.Anything, mock.Anything).Return("1.0", nil)

	ev := New(oracle, reg, quietLogger())
	data := domain.ExtractedClinicalData{
		Findings:     []string{"2.3 cm spiculated mass in the right upper lobe"},
		Impression:   "Suspicious for primary lung malignancy",
		Measurements: []string{"2.3 cm"},
	}

	score, feedback := ev.Evaluate(context.Background(), "CT chest ...", domain.DocRadiology, data)

	assert.InDelta(t, 1.0, score.Overall, 1e-9)
	assert.Empty(t, feedback.Issues)
	assert.Empty(t, feedback.MissingFields)
	assert.NotNil(t, feedback.MissingFields)
	assert.Empty(t, feedback.Suggestions)
}

func TestEvaluate_ScoresAreBounded(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 7}`, nil)
	ev := New(oracle, nil, quietLogger())

	data := domain.ExtractedClinicalData{
		Grade:      "banana",
		MSIStatus:  "unclear",
		TMB:        "-4",
		Stage:      "advanced",
		Date:       "last spring",
		IHCMarkers: map[string]string{"ER": "weird"},
	}
	for _, dt := range domain.AllDocumentTypes() {
		score, _ := ev.Evaluate(context.Background(), "text", dt, data)
		for _, v := range []float64{score.Overall, score.Completeness, score.Accuracy, score.Consistency, score.ClinicalValidity} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestCheckAccuracy(t *testing.T) {
	data := domain.ExtractedClinicalData{Histology: "adenocarcinoma"}

	tests := []struct {
		name     string
		response string
		err      error
		expected float64
	}{
		{"json object", `{"accuracy": 0.82}`, nil, 0.82},
		{"fenced json", "```json\n{\"accuracy\": 0.6}\n```", nil, 0.6},
		{"score key as string", `{"score": "0.4"}`, nil, 0.4},
		{"bare number", " 0.75 ", nil, 0.75},
		{"clamped above one", `{"accuracy": 1.4}`, nil, 1.0},
		{"clamped below zero", `{"accuracy": -2}`, nil, 0.0},
		{"unparseable", "I cannot tell", nil, DefaultAccuracy},
		{"object without score", `{"verdict": "good"}`, nil, DefaultAccuracy},
		{"oracle failure", "", errors.New("boom"), DefaultAccuracy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := new(mockOracle)
			oracle.On("Score", mock.Anything, mock.Anything).Return(tt.response, tt.err)
			ev := New(oracle, nil, quietLogger())

			assert.InDelta(t, tt.expected, ev.CheckAccuracy(context.Background(), "source", data), 1e-9)
		})
	}
}

func TestCheckAccuracy_EmptyExtractionSkipsOracle(t *testing.T) {
	oracle := new(mockOracle)
	ev := New(oracle, nil, quietLogger())

	assert.Equal(t, EmptyExtractionAccuracy, ev.CheckAccuracy(context.Background(), "source", domain.ExtractedClinicalData{}))
	oracle.AssertNotCalled(t, "Score", mock.Anything, mock.Anything)
}

func TestCheckAccuracy_NoOracle(t *testing.T) {
	ev := New(nil, nil, quietLogger())
	assert.Equal(t, DefaultAccuracy, ev.CheckAccuracy(context.Background(), "source", domain.ExtractedClinicalData{Grade: "2"}))
}

func TestCheckAccuracy_TruncatesSource(t *testing.T) {
	oracle := new(mockOracle)
	long := make([]byte, accuracySourceLimit*2)
	for i := range long {
		long[i] = 'a'
	}
	oracle.On("Score", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) < accuracySourceLimit*2
	})).Return(`{"accuracy": 0.9}`, nil)

	ev := New(oracle, nil, quietLogger())
	assert.InDelta(t, 0.9, ev.CheckAccuracy(context.Background(), string(long), domain.ExtractedClinicalData{Grade: "2"}), 1e-9)
	oracle.AssertExpectations(t)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...[truncated]", Truncate("abcdef", 3))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "äö...[truncated]", Truncate("äöü", 2))
}

func TestEvaluate_MissingOptionalIsMinorOnly(t *testing.T) {
	reg := rubric.NewRegistry()
	reg.Register(domain.DocLabReport, rubric.Rubric{
		Required: []domain.Field{domain.FieldLabValues},
		Optional: []domain.Field{domain.FieldInstitution},
	})
	ev := New(nil, reg, quietLogger())
	data := domain.ExtractedClinicalData{LabValues: []domain.LabValue{{Name: "WBC", Value: "6.1"}}}

	_, feedback := ev.Evaluate(context.Background(), "WBC 6.1", domain.DocLabReport, data)

	require.Len(t, feedback.Issues, 1)
	assert.Equal(t, domain.SeverityMinor, feedback.Issues[0].Severity)
	assert.Equal(t, domain.FieldInstitution, feedback.Issues[0].Field)
	assert.Empty(t, feedback.MissingFields)
	assert.Empty(t, feedback.PriorityFields)
}
