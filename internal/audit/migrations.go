package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var schemaMigrations embed.FS

// migrationDriver opens the migrate driver for a PostgreSQL URL.
var migrationDriver = postgresMigrationDriver

// MigrationRunner applies the embedded extraction_runs schema.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner reads the embedded migrations and applies them through
// driver. Closing the runner closes the driver.
func NewMigrationRunner(driver database.Driver, logger *logrus.Logger) (*MigrationRunner, error) {
	source, err := iofs.New(schemaMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Up applies pending migrations. Cancelling ctx stops after the migration in
// progress.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mr.migrate.GracefulStop <- true
		case <-done:
		}
	}()

	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Debug("Audit schema is up to date")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("running migrations up: %w", err)
	}

	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read audit schema version")
		return nil
	}
	mr.log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Audit schema migrated")
	return nil
}

// Close releases the migration source and database driver.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

// postgresMigrationDriver opens a dedicated connection pool; the driver
// closes it along with the runner.
func postgresMigrationDriver(databaseURL string) (database.Driver, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting migration driver: %w", err)
	}
	return driver, nil
}

// migrateSchema brings the database at databaseURL up to the embedded schema.
func migrateSchema(ctx context.Context, databaseURL string, logger *logrus.Logger) error {
	driver, err := migrationDriver(databaseURL)
	if err != nil {
		return err
	}
	runner, err := NewMigrationRunner(driver, logger)
	if err != nil {
		driver.Close()
		return err
	}
	err = runner.Up(ctx)
	if closeErr := runner.Close(); closeErr != nil {
		logger.WithError(closeErr).Warn("Failed to close migration runner")
	}
	return err
}
