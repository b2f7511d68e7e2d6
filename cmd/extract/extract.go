package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/bootstrap"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/config"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
)

var (
	reliabilityFlag   bool
	thresholdFlag     float64
	maxIterationsFlag int
	historyFlag       bool
)

func runExtract(cmd *cobra.Command, args []string) error {
	if thresholdFlag < 0 || thresholdFlag > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	if maxIterationsFlag < 0 {
		return fmt.Errorf("max-iterations must not be negative")
	}

	docs, err := readDocuments(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := loadComponents(ctx)
	if err != nil {
		return err
	}
	defer components.Close()

	opts := pipeline.Options{QualityThreshold: thresholdFlag, MaxIterations: maxIterationsFlag}
	if cmd.Flags().Changed("reliability") {
		opts.Reliability = &reliabilityFlag
	}

	results := components.Processor.ProcessBatch(ctx, docs, opts)
	return writeResults(cmd.OutOrStdout(), results, historyFlag)
}

// loadComponents builds the pipeline with logs sent to stderr, leaving
// stdout for results.
func loadComponents(ctx context.Context) (*bootstrap.Components, error) {
	configManager, err := config.NewManagerFromFile(configFile)
	if err != nil {
		return nil, err
	}
	if err := configManager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()
	if noAudit {
		cfg.Audit.Driver = "none"
	}
	cfg.Logging.Output = "stderr"

	return bootstrap.Build(ctx, cfg, config.NewLogger(cfg.Logging))
}

func readDocuments(paths []string) ([]pipeline.Document, error) {
	docs := make([]pipeline.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, pipeline.Document{
			Filename: filepath.Base(path),
			Data:     data,
			MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		})
	}
	return docs, nil
}

type resultWithHistory struct {
	domain.DocumentResult
	IterationHistory []domain.IterationRecord `json:"iterationHistory,omitempty"`
}

func writeResults(w io.Writer, results []domain.DocumentResult, withHistory bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if !withHistory {
		return enc.Encode(results)
	}
	out := make([]resultWithHistory, len(results))
	for i, r := range results {
		out[i] = resultWithHistory{DocumentResult: r, IterationHistory: r.IterationHistory}
	}
	return enc.Encode(out)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
