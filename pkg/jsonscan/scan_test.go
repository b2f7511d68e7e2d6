package jsonscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "Bare object",
			input:    `{"grade": "2"}`,
			expected: `{"grade": "2"}`,
		},
		{
			name:     "Surrounding prose",
			input:    "Here is the extraction:\n{\"histology\": \"adenocarcinoma\"}\nLet me know if you need more.",
			expected: `{"histology": "adenocarcinoma"}`,
		},
		{
			name:     "Nested objects",
			input:    `result: {"ihcMarkers": {"ER": "positive"}, "grade": "3"} done`,
			expected: `{"ihcMarkers": {"ER": "positive"}, "grade": "3"}`,
		},
		{
			name:     "Braces inside strings",
			input:    `{"impression": "no {acute} findings }", "x": "\"}"}`,
			expected: `{"impression": "no {acute} findings }", "x": "\"}"}`,
		},
		{
			name:     "Code fence",
			input:    "```json\n{\"accuracy\": 0.9}\n```",
			expected: `{"accuracy": 0.9}`,
		},
		{
			name:     "Invalid candidate skipped",
			input:    `{not json} then {"accuracy": 0.8}`,
			expected: `{"accuracy": 0.8}`,
		},
		{
			name:    "Unbalanced",
			input:   `{"grade": "2"`,
			wantErr: true,
		},
		{
			name:    "No object",
			input:   "I could not read this document.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstObject(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeFirstObject(t *testing.T) {
	var out struct {
		Accuracy float64 `json:"accuracy"`
	}
	require.NoError(t, DecodeFirstObject(`Score: {"accuracy": 0.85}`, &out))
	assert.InDelta(t, 0.85, out.Accuracy, 1e-9)

	assert.Error(t, DecodeFirstObject("none", &out))
}
