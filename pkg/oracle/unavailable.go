package oracle

import (
	"context"
)

// Unavailable is the oracle used when no credentials are configured. Text
// documents still pass through; every model call fails with ErrNotConfigured,
// so extraction degrades to the loop's fallback record.
type Unavailable struct{}

// ExtractText returns plain text documents and fails for everything else.
func (Unavailable) ExtractText(_ context.Context, data []byte, mimeType string) (string, error) {
	text, ok, err := PassthroughText(data, mimeType)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotConfigured
	}
	return text, nil
}

// ExtractStructured always fails.
func (Unavailable) ExtractStructured(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Score always fails.
func (Unavailable) Score(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
