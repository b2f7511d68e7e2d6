package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite run store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		filename TEXT DEFAULT '',
		document_type TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		reliability_enabled INTEGER NOT NULL DEFAULT 0,
		final_score REAL NOT NULL DEFAULT 0,
		iterations INTEGER NOT NULL DEFAULT 0,
		met_threshold INTEGER NOT NULL DEFAULT 0,
		stopped_reason TEXT DEFAULT '',
		cached INTEGER NOT NULL DEFAULT 0,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT DEFAULT '',
		result_json TEXT NOT NULL,
		history_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document_type ON extraction_runs(document_type);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON extraction_runs(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces a document result.
func (s *SQLiteStore) Save(ctx context.Context, result domain.DocumentResult) error {
	r, err := toRow(result, time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO extraction_runs (
			id, filename, document_type, confidence, reliability_enabled,
			final_score, iterations, met_threshold, stopped_reason, cached,
			processing_time_ms, error, result_json, history_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.id, r.filename, r.documentType, r.confidence, r.reliability,
		r.finalScore, r.iterations, r.metThreshold, r.stoppedReason, r.cached,
		r.processingTimeMs, r.errorText, r.resultJSON, r.historyJSON, r.createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a run by document ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM extraction_runs WHERE id = ?", id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return run, nil
}

// List returns runs with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM extraction_runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM extraction_runs").Scan(&count)
	return count, err
}

// Delete removes a run by document ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM extraction_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExportJSON exports all runs to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return writeExport(writer, all)
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
