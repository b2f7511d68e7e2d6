// Package api exposes the document pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/health"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/middleware"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	processor     *pipeline.Processor
	logger        *logrus.Logger
	health        *health.Checker
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, processor *pipeline.Processor, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()
	if logger == nil {
		logger = logrus.New()
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.Server.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	}

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(bodyLimit(cfg.Server.MaxUploadBytes))

	server := &Server{
		configManager: configManager,
		processor:     processor,
		logger:        logger,
		health:        newHealthChecker(processor, logger),
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/documents", s.handleProcessDocument)
		v1.POST("/documents/text", s.handleProcessText)
		v1.POST("/documents/batch", s.handleProcessBatch)
		v1.POST("/classify", s.handleClassify)
		v1.GET("/cache/stats", s.handleCacheStats)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.DELETE("/runs/:id", s.handleDeleteRun)
		v1.GET("/export/runs", s.handleExportRuns)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Run(c.Request.Context())
	_, cacheEnabled := s.processor.CacheStats()

	status := http.StatusOK
	if report.Overall == health.StateUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":      report.Overall,
		"timestamp":   report.Timestamp,
		"version":     Version,
		"reliability": s.configManager.GetReliabilityConfig().Enabled,
		"cache":       cacheEnabled,
		"audit":       s.processor.Store() != nil,
		"components":  report.Components,
	})
}

// newHealthChecker registers a check per backing service the processor uses.
func newHealthChecker(processor *pipeline.Processor, logger *logrus.Logger) *health.Checker {
	checker := health.NewChecker(health.DefaultTimeout, logger)
	if store := processor.Store(); store != nil {
		checker.Register(health.NewPingCheck("audit", true, store.Ping))
	}
	if c := processor.Cache(); c != nil && c.HasRedis() {
		checker.Register(health.NewPingCheck("redis", false, c.Ping))
	}
	if processor.OracleAvailable() {
		checker.Register(health.NewStaticCheck("oracle", health.StateHealthy, "credentials configured"))
	} else {
		checker.Register(health.NewStaticCheck("oracle", health.StateWarning, "no API key; OCR and extraction are disabled"))
	}
	return checker
}

// bodyLimit caps request bodies at limit bytes.
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
