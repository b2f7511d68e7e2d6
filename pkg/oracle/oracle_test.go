package oracle

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

type mockMessager struct {
	mock.Mock
}

func (m *mockMessager) New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	args := m.Called(ctx, params)
	if msg := args.Get(0); msg != nil {
		return msg.(*anthropic.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func textMessage(parts ...string) *anthropic.Message {
	msg := &anthropic.Message{}
	for _, p := range parts {
		msg.Content = append(msg.Content, anthropic.ContentBlockUnion{Type: "text", Text: p})
	}
	return msg
}

func newTestOracle(m Messager) *AnthropicOracle {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewWithMessager(m, domain.OracleConfig{Model: "test-model"}, logger)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(domain.OracleConfig{APIKey: "  "}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_UsesClientCreator(t *testing.T) {
	m := new(mockMessager)
	orig := newAnthropicClient
	defer func() { newAnthropicClient = orig }()

	var gotKey string
	newAnthropicClient = func(apiKey string) Messager {
		gotKey = apiKey
		return m
	}

	o, err := New(domain.OracleConfig{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", gotKey)
	assert.Equal(t, DefaultModel, o.Model())
}

func TestExtractStructured_ConcatenatesTextBlocks(t *testing.T) {
	m := new(mockMessager)
	m.On("New", mock.Anything, mock.MatchedBy(func(p anthropic.MessageNewParams) bool {
		return string(p.Model) == "test-model" && p.MaxTokens == 4096 && len(p.Messages) == 1
	})).Return(textMessage(`{"histology":`, ` "adenocarcinoma"}`), nil)

	out, err := newTestOracle(m).ExtractStructured(context.Background(), "extract this")

	require.NoError(t, err)
	assert.Equal(t, `{"histology": "adenocarcinoma"}`, out)
	m.AssertExpectations(t)
}

func TestScore_EmptyResponse(t *testing.T) {
	m := new(mockMessager)
	m.On("New", mock.Anything, mock.Anything).Return(textMessage("   "), nil)

	_, err := newTestOracle(m).Score(context.Background(), "score this")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCall_BreakerOpensAfterFailures(t *testing.T) {
	m := new(mockMessager)
	m.On("New", mock.Anything, mock.Anything).Return(nil, errors.New("status 529 overloaded"))
	o := newTestOracle(m)

	for i := 0; i < 3; i++ {
		_, err := o.ExtractStructured(context.Background(), "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := o.ExtractStructured(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	m.AssertNumberOfCalls(t, "New", 3)
}

func TestExtractText(t *testing.T) {
	t.Run("Plain text passes through", func(t *testing.T) {
		m := new(mockMessager)
		text, err := newTestOracle(m).ExtractText(context.Background(), []byte("Grade 2"), "text/plain; charset=utf-8")
		require.NoError(t, err)
		assert.Equal(t, "Grade 2", text)
		m.AssertNotCalled(t, "New", mock.Anything, mock.Anything)
	})

	t.Run("PDF is transcribed", func(t *testing.T) {
		m := new(mockMessager)
		m.On("New", mock.Anything, mock.Anything).Return(textMessage("PATHOLOGY REPORT"), nil)
		text, err := newTestOracle(m).ExtractText(context.Background(), []byte("%PDF-1.4"), "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, "PATHOLOGY REPORT", text)
	})

	t.Run("Unsupported type", func(t *testing.T) {
		_, err := newTestOracle(new(mockMessager)).ExtractText(context.Background(), []byte("PK"), "application/zip")
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("Empty document", func(t *testing.T) {
		_, err := newTestOracle(new(mockMessager)).ExtractText(context.Background(), nil, "text/plain")
		assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	})
}

func TestUnavailable(t *testing.T) {
	var o domain.ExtractionOracle = Unavailable{}

	text, err := o.ExtractText(context.Background(), []byte("note"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "note", text)

	_, err = o.ExtractText(context.Background(), []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = o.ExtractStructured(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = o.Score(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSupportedMimeType(t *testing.T) {
	assert.True(t, SupportedMimeType("application/pdf"))
	assert.True(t, SupportedMimeType("image/png"))
	assert.True(t, SupportedMimeType("text/plain; charset=utf-8"))
	assert.False(t, SupportedMimeType("application/zip"))
}
