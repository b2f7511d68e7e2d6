// Package audit persists processed document results together with their
// reliability-loop iteration history.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one stored document result.
type Run struct {
	Result    domain.DocumentResult    `json:"result"`
	History   []domain.IterationRecord `json:"iterationHistory"`
	CreatedAt time.Time                `json:"createdAt"`
}

// Store defines the interface for run storage operations.
type Store interface {
	// Save persists a result. Saving an existing document ID replaces it.
	Save(ctx context.Context, result domain.DocumentResult) error

	// Get retrieves a run by document ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns runs, newest first.
	List(ctx context.Context, limit, offset int) ([]*Run, error)

	// Count returns the total number of stored runs.
	Count(ctx context.Context) (int64, error)

	// Delete removes a run, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every run to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Runs       []*Run    `json:"runs"`
}

// maxExportLimit is the maximum number of runs exported at once.
const maxExportLimit = 1000000

// row holds the column values shared by both SQL stores.
type row struct {
	id               string
	filename         string
	documentType     string
	confidence       float64
	reliability      bool
	finalScore       float64
	iterations       int
	metThreshold     bool
	stoppedReason    string
	cached           bool
	processingTimeMs int64
	errorText        string
	resultJSON       string
	historyJSON      string
	createdAt        time.Time
}

func toRow(result domain.DocumentResult, now time.Time) (row, error) {
	if result.DocumentID == "" {
		return row{}, fmt.Errorf("document id is required")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	history := result.IterationHistory
	if history == nil {
		history = []domain.IterationRecord{}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode result: %w", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode history: %w", err)
	}

	return row{
		id:               result.DocumentID,
		filename:         result.Filename,
		documentType:     string(result.ClassifiedType),
		confidence:       result.Confidence,
		reliability:      result.ReliabilityLoop.Enabled,
		finalScore:       result.ReliabilityLoop.FinalScore,
		iterations:       result.ReliabilityLoop.Iterations,
		metThreshold:     result.ReliabilityLoop.MetThreshold,
		stoppedReason:    string(result.ReliabilityLoop.StoppedReason),
		cached:           result.Cached,
		processingTimeMs: result.ProcessingTimeMs,
		errorText:        result.Error,
		resultJSON:       string(resultJSON),
		historyJSON:      string(historyJSON),
		createdAt:        result.CreatedAt,
	}, nil
}

// selectColumns lists the columns read back by Get and List.
const selectColumns = `id, result_json, history_json, created_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		id, resultJSON, historyJSON string
		createdAt                   time.Time
	)
	if err := s.Scan(&id, &resultJSON, &historyJSON, &createdAt); err != nil {
		return nil, err
	}

	run := &Run{CreatedAt: createdAt}
	if err := json.Unmarshal([]byte(resultJSON), &run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &run.History); err != nil {
		return nil, fmt.Errorf("failed to decode history of run %s: %w", id, err)
	}
	run.Result.IterationHistory = run.History
	return run, nil
}

func writeExport(writer io.Writer, runs []*Run) error {
	if runs == nil {
		runs = []*Run{}
	}
	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(runs),
		Runs:       runs,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
