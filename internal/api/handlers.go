package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
)

const (
	maxBatchFiles   = 20
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// TextRequest is the body of POST /api/v1/documents/text.
type TextRequest struct {
	Filename         string  `json:"filename"`
	Text             string  `json:"text" binding:"required"`
	Reliability      *bool   `json:"reliability,omitempty"`
	QualityThreshold float64 `json:"qualityThreshold,omitempty"`
	MaxIterations    int     `json:"maxIterations,omitempty"`
}

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	Text string `json:"text" binding:"required"`
}

// BatchResponse wraps the results of a batch upload.
type BatchResponse struct {
	Results []domain.DocumentResult `json:"results"`
	Total   int                     `json:"total"`
	Failed  int                     `json:"failed"`
}

func (s *Server) handleProcessDocument(c *gin.Context) {
	opts, err := optionsFromQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, formError("file", err))
		return
	}
	doc, err := readUpload(header)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.processor.Process(c.Request.Context(), doc, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleProcessText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, formError("text", err))
		return
	}
	opts := pipeline.Options{
		Reliability:      req.Reliability,
		QualityThreshold: req.QualityThreshold,
		MaxIterations:    req.MaxIterations,
	}
	if err := validateOptions(opts); err != nil {
		s.respondError(c, err)
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "document.txt"
	}

	result, err := s.processor.ProcessText(c.Request.Context(), filename, req.Text, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleProcessBatch(c *gin.Context) {
	opts, err := optionsFromQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		s.respondError(c, formError("files", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		s.respondError(c, domain.NewValidationError("files", "at least one file is required", 0))
		return
	}
	if len(headers) > maxBatchFiles {
		s.respondError(c, domain.NewValidationError("files", "too many files in batch", len(headers)))
		return
	}

	docs := make([]pipeline.Document, 0, len(headers))
	for _, h := range headers {
		doc, err := readUpload(h)
		if err != nil {
			s.respondError(c, err)
			return
		}
		docs = append(docs, doc)
	}

	results := s.processor.ProcessBatch(c.Request.Context(), docs, opts)
	resp := BatchResponse{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Error != "" {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, formError("text", err))
		return
	}
	c.JSON(http.StatusOK, s.processor.Classifier().ClassifyDocument(req.Text))
}

func (s *Server) handleCacheStats(c *gin.Context) {
	stats, ok := s.processor.CacheStats()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "stats": stats})
}

func (s *Server) handleListRuns(c *gin.Context) {
	store := s.processor.Store()
	if store == nil {
		s.respondError(c, errAuditDisabled)
		return
	}
	limit, err := intQuery(c, "limit", defaultRunLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if limit < 1 || limit > maxRunLimit {
		s.respondError(c, domain.NewValidationError("limit", "limit must be between 1 and 500", limit))
		return
	}
	if offset < 0 {
		s.respondError(c, domain.NewValidationError("offset", "offset must not be negative", offset))
		return
	}

	ctx := c.Request.Context()
	runs, err := store.List(ctx, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := store.Count(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetRun(c *gin.Context) {
	store := s.processor.Store()
	if store == nil {
		s.respondError(c, errAuditDisabled)
		return
	}
	run, err := store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	store := s.processor.Store()
	if store == nil {
		s.respondError(c, errAuditDisabled)
		return
	}
	if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportRuns(c *gin.Context) {
	store := s.processor.Store()
	if store == nil {
		s.respondError(c, errAuditDisabled)
		return
	}
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="extraction-runs.json"`)
	c.Status(http.StatusOK)
	if err := store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Run export failed")
	}
}

func readUpload(header *multipart.FileHeader) (pipeline.Document, error) {
	f, err := header.Open()
	if err != nil {
		return pipeline.Document{}, formError("file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Document{}, formError("file", err)
	}
	return pipeline.Document{
		Filename: header.Filename,
		Data:     data,
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}

func optionsFromQuery(c *gin.Context) (pipeline.Options, error) {
	var opts pipeline.Options
	if v := c.Query("reliability"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, domain.NewValidationError("reliability", "must be true or false", v)
		}
		opts.Reliability = &b
	}
	if v := c.Query("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, domain.NewValidationError("threshold", "must be a number", v)
		}
		opts.QualityThreshold = f
	}
	if v := c.Query("max_iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.NewValidationError("max_iterations", "must be an integer", v)
		}
		opts.MaxIterations = n
	}
	return opts, validateOptions(opts)
}

// validateOptions rejects explicit overrides outside their ranges. Zero
// values mean "use the configured default".
func validateOptions(opts pipeline.Options) error {
	if opts.QualityThreshold < 0 || opts.QualityThreshold > 1 {
		return domain.NewValidationError("threshold", "must be between 0 and 1", opts.QualityThreshold)
	}
	if opts.MaxIterations < 0 || opts.MaxIterations > 10 {
		return domain.NewValidationError("max_iterations", "must be between 1 and 10", opts.MaxIterations)
	}
	return nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", v)
	}
	return n, nil
}

// formError turns a binding or multipart error into a validation error,
// keeping oversize bodies distinguishable.
func formError(field string, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return domain.NewValidationError(field, err.Error(), nil)
}
