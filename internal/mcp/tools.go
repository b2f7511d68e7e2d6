package mcp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/cache"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
)

const (
	maxFileBytes     = 32 << 20
	defaultListLimit = 20
)

var errAuditDisabled = errors.New("audit store is disabled")

type extractInput struct {
	Text             string  `json:"text,omitempty" jsonschema:"Document text. Provide either text or file_path"`
	FilePath         string  `json:"file_path,omitempty" jsonschema:"Path of a local PDF, image or text file"`
	Filename         string  `json:"filename,omitempty" jsonschema:"Display name stored with the result"`
	Reliability      *bool   `json:"reliability,omitempty" jsonschema:"Run the quality-gated extraction loop"`
	QualityThreshold float64 `json:"quality_threshold,omitempty" jsonschema:"Score at which the loop stops, between 0 and 1"`
	MaxIterations    int     `json:"max_iterations,omitempty" jsonschema:"Maximum extraction attempts"`
}

type extractOutput struct {
	DocumentID       string                         `json:"document_id"`
	Filename         string                         `json:"filename,omitempty"`
	ClassifiedType   string                         `json:"classified_type"`
	Confidence       float64                        `json:"confidence"`
	IsComposite      bool                           `json:"is_composite"`
	ExtractedData    domain.ExtractedClinicalData   `json:"extracted_data"`
	Warnings         []string                       `json:"warnings,omitempty"`
	Cached           bool                           `json:"cached"`
	ReliabilityLoop  domain.ReliabilityLoopMetadata `json:"reliability_loop"`
	ProcessingTimeMs int64                          `json:"processing_time_ms"`
	Error            string                         `json:"error,omitempty"`
}

type classifyInput struct {
	Text string `json:"text" jsonschema:"Document text to classify"`
}

type classifyOutput struct {
	PrimaryType       string   `json:"primary_type"`
	PrimaryConfidence float64  `json:"primary_confidence"`
	ContainsContent   []string `json:"contains_content,omitempty"`
	IsComposite       bool     `json:"is_composite"`
	SectionCount      int      `json:"section_count"`
	Reason            string   `json:"reason"`
}

type cacheStatsInput struct{}

type cacheStatsOutput struct {
	Enabled bool        `json:"enabled"`
	Stats   cache.Stats `json:"stats"`
}

type listRunsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum runs to return (default 20)"`
	Offset int `json:"offset,omitempty" jsonschema:"Runs to skip"`
}

type runSummary struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename,omitempty"`
	ClassifiedType string  `json:"classified_type"`
	FinalScore     float64 `json:"final_score"`
	Iterations     int     `json:"iterations"`
	StoppedReason  string  `json:"stopped_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type listRunsOutput struct {
	Runs  []runSummary `json:"runs,omitempty"`
	Total int64        `json:"total"`
}

type getRunInput struct {
	DocumentID string `json:"document_id" jsonschema:"Document ID returned by extract_document_text"`
}

type exportRunsInput struct{}

type exportRunsOutput struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_document_text",
		Description: "Extract structured clinical data from a document for tumor board review",
	}, s.handleExtract)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_document",
		Description: "Classify clinical document text and detect embedded subspecialty sections",
	}, s.handleClassify)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Report content cache statistics",
	}, s.handleCacheStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_runs",
		Description: "List stored extraction runs, newest first",
	}, s.handleListRuns)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_run",
		Description: "Fetch a stored extraction run by document ID",
	}, s.handleGetRun)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_runs",
		Description: "Export every stored extraction run to a JSON file",
	}, s.handleExportRuns)

	s.logger.WithField("tool_count", 6).Debug("Registered MCP tools")
}

func (s *Server) handleExtract(ctx context.Context, _ *mcp.CallToolRequest, in extractInput) (*mcp.CallToolResult, extractOutput, error) {
	doc, err := documentFromInput(in)
	if err != nil {
		return nil, extractOutput{}, err
	}
	opts := pipeline.Options{
		Reliability:      in.Reliability,
		QualityThreshold: in.QualityThreshold,
		MaxIterations:    in.MaxIterations,
	}
	if opts.QualityThreshold < 0 || opts.QualityThreshold > 1 {
		return nil, extractOutput{}, domain.NewValidationError("quality_threshold", "must be between 0 and 1", opts.QualityThreshold)
	}
	if opts.MaxIterations < 0 {
		return nil, extractOutput{}, domain.NewValidationError("max_iterations", "must not be negative", opts.MaxIterations)
	}

	result, err := s.processor.Process(ctx, doc, opts)
	if err != nil {
		return nil, extractOutput{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"document_id":     result.DocumentID,
		"classified_type": result.ClassifiedType,
	}).Debug("MCP extraction completed")

	out := toExtractOutput(result)
	return textResult(fmt.Sprintf("Extracted %s document %s (confidence %.2f)",
		out.ClassifiedType, out.DocumentID, out.Confidence)), out, nil
}

func (s *Server) handleClassify(_ context.Context, _ *mcp.CallToolRequest, in classifyInput) (*mcp.CallToolResult, classifyOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, classifyOutput{}, domain.NewValidationError("text", "text is required", "")
	}
	c := s.processor.Classifier().ClassifyDocument(in.Text)
	out := classifyOutput{
		PrimaryType:       string(c.PrimaryType),
		PrimaryConfidence: c.PrimaryConfidence,
		IsComposite:       c.IsComposite,
		SectionCount:      len(c.ExtractedSections),
		Reason:            c.ClassificationReason,
	}
	for _, tag := range c.ContainsContent {
		out.ContainsContent = append(out.ContainsContent, string(tag))
	}
	return textResult(out.Reason), out, nil
}

func (s *Server) handleCacheStats(context.Context, *mcp.CallToolRequest, cacheStatsInput) (*mcp.CallToolResult, cacheStatsOutput, error) {
	stats, ok := s.processor.CacheStats()
	out := cacheStatsOutput{Enabled: ok, Stats: stats}
	if !ok {
		return textResult("Content cache is disabled"), out, nil
	}
	return textResult(fmt.Sprintf("%d entries, hit rate %.2f", stats.Size, stats.HitRate)), out, nil
}

func (s *Server) handleListRuns(ctx context.Context, _ *mcp.CallToolRequest, in listRunsInput) (*mcp.CallToolResult, listRunsOutput, error) {
	store := s.processor.Store()
	if store == nil {
		return nil, listRunsOutput{}, errAuditDisabled
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(in.Offset, 0)

	runs, err := store.List(ctx, limit, offset)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list runs: %w", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("count runs: %w", err)
	}

	out := listRunsOutput{Total: total}
	for _, run := range runs {
		out.Runs = append(out.Runs, summarize(run))
	}
	return textResult(fmt.Sprintf("%d of %d runs", len(out.Runs), total)), out, nil
}

func (s *Server) handleGetRun(ctx context.Context, _ *mcp.CallToolRequest, in getRunInput) (*mcp.CallToolResult, extractOutput, error) {
	store := s.processor.Store()
	if store == nil {
		return nil, extractOutput{}, errAuditDisabled
	}
	run, err := store.Get(ctx, in.DocumentID)
	if err != nil {
		return nil, extractOutput{}, err
	}
	out := toExtractOutput(run.Result)
	return textResult(fmt.Sprintf("Run %s with %d iterations", out.DocumentID, len(run.History))), out, nil
}

func (s *Server) handleExportRuns(ctx context.Context, _ *mcp.CallToolRequest, _ exportRunsInput) (*mcp.CallToolResult, exportRunsOutput, error) {
	store := s.processor.Store()
	if store == nil {
		return nil, exportRunsOutput{}, errAuditDisabled
	}
	if s.exportDir == "" {
		return nil, exportRunsOutput{}, fmt.Errorf("export directory is not configured")
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, exportRunsOutput{}, fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(s.exportDir, fmt.Sprintf("runs-%s.json", time.Now().UTC().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, exportRunsOutput{}, fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := store.ExportJSON(ctx, f); err != nil {
		return nil, exportRunsOutput{}, fmt.Errorf("export runs: %w", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		return nil, exportRunsOutput{}, fmt.Errorf("count runs: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"path": path, "count": count}).Info("Exported extraction runs")
	return textResult(fmt.Sprintf("Exported %d runs to %s", count, path)), exportRunsOutput{Path: path, Count: count}, nil
}

func documentFromInput(in extractInput) (pipeline.Document, error) {
	hasText := strings.TrimSpace(in.Text) != ""
	hasPath := strings.TrimSpace(in.FilePath) != ""
	switch {
	case hasText && hasPath:
		return pipeline.Document{}, domain.NewValidationError("text", "provide either text or file_path, not both", "")
	case hasText:
		name := in.Filename
		if name == "" {
			name = "document.txt"
		}
		return pipeline.Document{Filename: name, Data: []byte(in.Text), MimeType: "text/plain; charset=utf-8"}, nil
	case hasPath:
		info, err := os.Stat(in.FilePath)
		if err != nil {
			return pipeline.Document{}, domain.NewValidationError("file_path", err.Error(), in.FilePath)
		}
		if info.Size() > maxFileBytes {
			return pipeline.Document{}, domain.NewValidationError("file_path", "file is too large", info.Size())
		}
		data, err := os.ReadFile(in.FilePath)
		if err != nil {
			return pipeline.Document{}, domain.NewValidationError("file_path", err.Error(), in.FilePath)
		}
		name := in.Filename
		if name == "" {
			name = filepath.Base(in.FilePath)
		}
		return pipeline.Document{
			Filename: name,
			Data:     data,
			MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(in.FilePath))),
		}, nil
	default:
		return pipeline.Document{}, domain.NewValidationError("text", "text or file_path is required", "")
	}
}

func toExtractOutput(r domain.DocumentResult) extractOutput {
	out := extractOutput{
		DocumentID:       r.DocumentID,
		Filename:         r.Filename,
		ClassifiedType:   string(r.ClassifiedType),
		Confidence:       r.Confidence,
		ExtractedData:    r.ExtractedData,
		Warnings:         r.Warnings,
		Cached:           r.Cached,
		ReliabilityLoop:  r.ReliabilityLoop,
		ProcessingTimeMs: r.ProcessingTimeMs,
		Error:            r.Error,
	}
	if r.Classification != nil {
		out.IsComposite = r.Classification.IsComposite
	}
	return out
}

func summarize(run *audit.Run) runSummary {
	r := run.Result
	return runSummary{
		DocumentID:     r.DocumentID,
		Filename:       r.Filename,
		ClassifiedType: string(r.ClassifiedType),
		FinalScore:     r.ReliabilityLoop.FinalScore,
		Iterations:     r.ReliabilityLoop.Iterations,
		StoppedReason:  string(r.ReliabilityLoop.StoppedReason),
		CreatedAt:      run.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
