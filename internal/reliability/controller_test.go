package reliability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/rubric"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/oracle"
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

const (
	pathologySource = "SURGICAL PATHOLOGY REPORT\nDiagnosis: adenocarcinoma, moderately differentiated (grade 2)."
	completeJSON    = `Here is the extraction: {"histology": "adenocarcinoma", "grade": "2"} Let me know if you need more.`
)

// With the test rubric fully satisfied and no validity or consistency
// problems, overall = 0.6 + 0.4*accuracy.
func newTestController(o domain.ExtractionOracle) *Controller {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	reg := rubric.NewRegistry()
	reg.Register(domain.DocPathology, rubric.Rubric{
		Required: []domain.Field{domain.FieldHistology, domain.FieldGrade},
	})
	return NewController(o, nil, reg, DefaultConfig(), logger)
}

func TestRun_ThresholdMetOnFirstIteration(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 1.0}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopThresholdMet, result.StoppedReason)
	assert.True(t, result.MetThreshold)
	assert.Equal(t, 1, result.Iterations)
	require.Len(t, result.IterationHistory, 1)
	assert.InDelta(t, 1.0, result.FinalScore.Overall, 1e-9)
	assert.Equal(t, "adenocarcinoma", result.FinalData.Histology)
	assert.Equal(t, "2", result.FinalData.Grade)
	assert.NotEmpty(t, result.IterationHistory[0].PromptHash)
	o.AssertExpectations(t)
}

func TestRun_MaxIterationsReached(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Times(3)
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.5}`, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.6}`, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.7}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopMaxIterations, result.StoppedReason)
	assert.False(t, result.MetThreshold)
	assert.Equal(t, 3, result.Iterations)
	assert.InDelta(t, 0.88, result.FinalScore.Overall, 1e-9)
	assert.Equal(t, result.IterationHistory[2].Score, result.FinalScore)
	o.AssertExpectations(t)
}

func TestRun_InsufficientImprovement(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Twice()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.5}`, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.55}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopInsufficientImprovement, result.StoppedReason)
	assert.Equal(t, 2, result.Iterations)
	assert.InDelta(t, 0.82, result.FinalScore.Overall, 1e-9)
	o.AssertExpectations(t)
}

func TestRun_LastIterationIsFinalEvenWhenWorse(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Twice()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.6}`, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.3}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopInsufficientImprovement, result.StoppedReason)
	assert.InDelta(t, 0.72, result.FinalScore.Overall, 1e-9)

	best, ok := result.BestIteration()
	require.True(t, ok)
	assert.Equal(t, 1, best.Iteration)
}

func TestRun_RefinementPromptCarriesFeedback(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "REFINEMENT")
	})).Return(`{"histology": "adenocarcinoma"}`, nil).Once()
	o.On("ExtractStructured", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "REFINEMENT") && strings.Contains(p, "CRITICAL ISSUES") && strings.Contains(p, "- grade")
	})).Return(completeJSON, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 1.0}`, nil)

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopThresholdMet, result.StoppedReason)
	assert.Equal(t, 2, result.Iterations)
	assert.NotEqual(t, result.IterationHistory[0].PromptHash, result.IterationHistory[1].PromptHash)
	o.AssertExpectations(t)
}

func TestRun_OracleFailureFallsBack(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return("", errors.New("connection refused")).Once()

	source := strings.Repeat("x", 5000)
	result := newTestController(o).Run(context.Background(), source, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopExtractionFailed, result.StoppedReason)
	assert.False(t, result.MetThreshold)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, domain.EvaluationScore{}, result.FinalScore)
	assert.Equal(t, strings.Repeat("x", fallbackTextLimit), result.FinalData.RawText)
	assert.Contains(t, result.IterationHistory[0].Error, "connection refused")
	o.AssertNotCalled(t, "Score", mock.Anything, mock.Anything)
}

func TestRun_UnparseableResponseFallsBack(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return("I could not read this document.", nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopExtractionFailed, result.StoppedReason)
	assert.Equal(t, pathologySource, result.FinalData.RawText)
	assert.Contains(t, result.IterationHistory[0].Error, ErrUnparseableResponse.Error())
}

func TestRun_FailureAfterScoredIterationKeepsLastScore(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Once()
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.5}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopExtractionFailed, result.StoppedReason)
	assert.Equal(t, 2, result.Iterations)
	assert.InDelta(t, 0.8, result.FinalScore.Overall, 1e-9)
	assert.Equal(t, pathologySource, result.FinalData.RawText)
	assert.False(t, result.MetThreshold)
}

func TestRun_UnavailableOracleIsDeterministic(t *testing.T) {
	ctrl := newTestController(oracle.Unavailable{})

	for i := 0; i < 3; i++ {
		result := ctrl.Run(context.Background(), pathologySource, domain.DocPathology, Options{})
		assert.Equal(t, domain.StopExtractionFailed, result.StoppedReason)
		assert.False(t, result.MetThreshold)
		assert.Equal(t, 1, result.Iterations)
		assert.Equal(t, pathologySource, result.FinalData.RawText)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	o := new(mockOracle)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestController(o).Run(ctx, pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopCancelled, result.StoppedReason)
	assert.Equal(t, 0, result.Iterations)
	assert.False(t, result.MetThreshold)
	o.AssertNotCalled(t, "ExtractStructured", mock.Anything, mock.Anything)
}

func TestRun_CancelledDuringExtraction(t *testing.T) {
	o := new(mockOracle)
	ctx, cancel := context.WithCancel(context.Background())
	o.On("ExtractStructured", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	result := newTestController(o).Run(ctx, pathologySource, domain.DocPathology, Options{})

	assert.Equal(t, domain.StopCancelled, result.StoppedReason)
	assert.Empty(t, result.IterationHistory)
}

func TestRun_OptionsOverrideDefaults(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.5}`, nil).Once()

	ctrl := newTestController(o)
	result := ctrl.Run(context.Background(), pathologySource, domain.DocPathology, Options{MaxIterations: 1})
	assert.Equal(t, domain.StopMaxIterations, result.StoppedReason)

	o.On("ExtractStructured", mock.Anything, mock.Anything).Return(completeJSON, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 0.5}`, nil).Once()
	result = ctrl.Run(context.Background(), pathologySource, domain.DocPathology, Options{QualityThreshold: 0.75})
	assert.Equal(t, domain.StopThresholdMet, result.StoppedReason)
	assert.True(t, result.MetThreshold)
}

func TestRun_SurfacesParseWarnings(t *testing.T) {
	o := new(mockOracle)
	o.On("ExtractStructured", mock.Anything, mock.Anything).
		Return(`{"histology": "adenocarcinoma", "grade": "2", "favoriteColor": "blue"}`, nil).Once()
	o.On("Score", mock.Anything, mock.Anything).Return(`{"accuracy": 1.0}`, nil).Once()

	result := newTestController(o).Run(context.Background(), pathologySource, domain.DocPathology, Options{MaxIterations: 1})

	assert.Equal(t, "adenocarcinoma", result.FinalData.Histology)
	assert.True(t, result.Scored())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "favoriteColor")
}
