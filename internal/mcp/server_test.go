package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/cache"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/redact"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/reliability"
	"github.com/inventcures/virtual-tumor-board-sub003/pkg/oracle"
)

const radiologyReport = `CT CHEST WITH CONTRAST
Findings: 2.1 cm spiculated nodule in the right upper lobe. No pleural effusion.
Impression: Suspicious right upper lobe nodule.`

const extractionJSON = `{"findings": ["2.1 cm spiculated nodule in the right upper lobe"], "impression": "Suspicious right upper lobe nodule", "measurements": ["2.1 cm"]}`

type fixedOracle struct{}

func (fixedOracle) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return oracle.Unavailable{}.ExtractText(ctx, data, mimeType)
}

func (fixedOracle) ExtractStructured(context.Context, string) (string, error) {
	return extractionJSON, nil
}

func (fixedOracle) Score(context.Context, string) (string, error) {
	return `{"accuracy": 0.95}`, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	logger := quietLogger()

	memory, err := cache.NewMemoryCache(10, time.Hour)
	require.NoError(t, err)

	var store audit.Store
	if withStore {
		s, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store = s
	}

	o := fixedOracle{}
	processor := pipeline.NewProcessor(pipeline.Dependencies{
		Oracle:     o,
		Controller: reliability.NewController(o, nil, nil, reliability.DefaultConfig(), logger),
		Cache:      cache.New(memory, nil, logger),
		Redactor:   redact.New(domain.RedactionConfig{Enabled: true}),
		Store:      store,
		Logger:     logger,
	}, domain.PipelineConfig{MaxConcurrency: 2}, false)

	server, err := NewServer(domain.MCPConfig{ExportDir: filepath.Join(t.TempDir(), "exports")}, processor, logger)
	require.NoError(t, err)
	return server
}

func TestNewServer_RequiresProcessor(t *testing.T) {
	_, err := NewServer(domain.MCPConfig{}, nil, quietLogger())
	assert.Error(t, err)
}

func TestHandleExtract_Text(t *testing.T) {
	s := newTestServer(t, true)

	res, out, err := s.handleExtract(context.Background(), nil, extractInput{Text: radiologyReport, Filename: "ct.txt"})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "radiology", out.ClassifiedType)
	assert.Equal(t, "ct.txt", out.Filename)
	assert.Equal(t, "Suspicious right upper lobe nodule", out.ExtractedData.Impression)
	assert.False(t, out.ReliabilityLoop.Enabled)
	assert.NotEmpty(t, out.DocumentID)
}

func TestHandleExtract_FilePath(t *testing.T) {
	s := newTestServer(t, false)
	path := filepath.Join(t.TempDir(), "ct-report.txt")
	require.NoError(t, os.WriteFile(path, []byte(radiologyReport), 0o600))

	_, out, err := s.handleExtract(context.Background(), nil, extractInput{FilePath: path})

	require.NoError(t, err)
	assert.Equal(t, "ct-report.txt", out.Filename)
	assert.Equal(t, "radiology", out.ClassifiedType)
}

func TestHandleExtract_Reliability(t *testing.T) {
	s := newTestServer(t, false)
	on := true

	_, out, err := s.handleExtract(context.Background(), nil, extractInput{
		Text:          radiologyReport,
		Reliability:   &on,
		MaxIterations: 2,
	})

	require.NoError(t, err)
	assert.True(t, out.ReliabilityLoop.Enabled)
	assert.GreaterOrEqual(t, out.ReliabilityLoop.Iterations, 1)
	assert.LessOrEqual(t, out.ReliabilityLoop.Iterations, 2)
	require.NotNil(t, out.ReliabilityLoop.ScoreBreakdown)
	assert.InDelta(t, out.ReliabilityLoop.FinalScore, out.ReliabilityLoop.ScoreBreakdown.Overall, 1e-9)
}

func TestHandleExtract_InvalidInput(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name  string
		input extractInput
		field string
	}{
		{"nothing", extractInput{}, "text"},
		{"both sources", extractInput{Text: "x", FilePath: "/tmp/x"}, "text"},
		{"missing file", extractInput{FilePath: filepath.Join(t.TempDir(), "absent.pdf")}, "file_path"},
		{"threshold", extractInput{Text: "x", QualityThreshold: 2}, "quality_threshold"},
		{"iterations", extractInput{Text: "x", MaxIterations: -1}, "max_iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.handleExtract(context.Background(), nil, tt.input)
			require.Error(t, err)
			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestHandleClassify(t *testing.T) {
	s := newTestServer(t, false)

	_, out, err := s.handleClassify(context.Background(), nil, classifyInput{Text: radiologyReport})
	require.NoError(t, err)
	assert.Equal(t, "radiology", out.PrimaryType)
	assert.NotEmpty(t, out.Reason)

	_, _, err = s.handleClassify(context.Background(), nil, classifyInput{Text: "  "})
	assert.Error(t, err)
}

func TestHandleCacheStats(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()

	_, _, err := s.handleExtract(ctx, nil, extractInput{Text: radiologyReport})
	require.NoError(t, err)
	_, second, err := s.handleExtract(ctx, nil, extractInput{Text: radiologyReport})
	require.NoError(t, err)
	assert.True(t, second.Cached)

	_, out, err := s.handleCacheStats(ctx, nil, cacheStatsInput{})
	require.NoError(t, err)
	assert.True(t, out.Enabled)
	assert.Equal(t, 1, out.Stats.Size)
	assert.Equal(t, int64(1), out.Stats.Hits)
	assert.Equal(t, int64(1), out.Stats.Misses)
}

func TestRunTools(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()

	_, extracted, err := s.handleExtract(ctx, nil, extractInput{Text: radiologyReport})
	require.NoError(t, err)

	_, list, err := s.handleListRuns(ctx, nil, listRunsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, extracted.DocumentID, list.Runs[0].DocumentID)

	_, got, err := s.handleGetRun(ctx, nil, getRunInput{DocumentID: extracted.DocumentID})
	require.NoError(t, err)
	assert.Equal(t, extracted.ExtractedData, got.ExtractedData)

	_, _, err = s.handleGetRun(ctx, nil, getRunInput{DocumentID: "missing"})
	assert.ErrorIs(t, err, audit.ErrNotFound)

	_, exported, err := s.handleExportRuns(ctx, nil, exportRunsInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), exported.Count)
	data, err := os.ReadFile(exported.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), extracted.DocumentID)
}

func TestRunTools_AuditDisabled(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()

	_, _, err := s.handleListRuns(ctx, nil, listRunsInput{})
	assert.ErrorIs(t, err, errAuditDisabled)
	_, _, err = s.handleGetRun(ctx, nil, getRunInput{DocumentID: "x"})
	assert.ErrorIs(t, err, errAuditDisabled)
	_, _, err = s.handleExportRuns(ctx, nil, exportRunsInput{})
	assert.ErrorIs(t, err, errAuditDisabled)
}

func TestServer_InMemorySession(t *testing.T) {
	s := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"extract_document_text", "classify_document", "cache_stats",
		"list_runs", "get_run", "export_runs",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "classify_document",
		Arguments: map[string]any{"text": radiologyReport},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.NotEmpty(t, text.Text)
}
