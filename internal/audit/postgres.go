package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL run store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromConfig opens a connection pool from cfg.
func NewPostgresStoreFromConfig(cfg domain.AuditConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save stores or replaces a document result.
func (s *PostgresStore) Save(ctx context.Context, result domain.DocumentResult) error {
	r, err := toRow(result, time.Now().UTC())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO extraction_runs (
			id, filename, document_type, confidence, reliability_enabled,
			final_score, iterations, met_threshold, stopped_reason, cached,
			processing_time_ms, error, result_json, history_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			document_type = EXCLUDED.document_type,
			confidence = EXCLUDED.confidence,
			reliability_enabled = EXCLUDED.reliability_enabled,
			final_score = EXCLUDED.final_score,
			iterations = EXCLUDED.iterations,
			met_threshold = EXCLUDED.met_threshold,
			stopped_reason = EXCLUDED.stopped_reason,
			cached = EXCLUDED.cached,
			processing_time_ms = EXCLUDED.processing_time_ms,
			error = EXCLUDED.error,
			result_json = EXCLUDED.result_json,
			history_json = EXCLUDED.history_json
	`

	_, err = s.db.ExecContext(ctx, query,
		r.id, r.filename, r.documentType, r.confidence, r.reliability,
		r.finalScore, r.iterations, r.metThreshold, r.stoppedReason, r.cached,
		r.processingTimeMs, r.errorText, r.resultJSON, r.historyJSON, r.createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get retrieves a run by document ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM extraction_runs WHERE id = $1", id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns runs with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM extraction_runs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// Count returns the total number of runs.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM extraction_runs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Delete removes a run by document ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM extraction_runs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExportJSON exports all runs to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return writeExport(writer, all)
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
