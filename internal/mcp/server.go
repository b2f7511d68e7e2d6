// Package mcp exposes the document pipeline as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/pipeline"
)

// Server is the MCP tool server.
type Server struct {
	mcp       *mcp.Server
	processor *pipeline.Processor
	exportDir string
	logger    *logrus.Logger
}

// NewServer creates an MCP server and registers every tool.
func NewServer(cfg domain.MCPConfig, processor *pipeline.Processor, logger *logrus.Logger) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	name := cfg.ServerName
	if name == "" {
		name = "tumor-board-extractor"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "v0.1.0"
	}

	s := &Server{
		mcp:       mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		processor: processor,
		exportDir: cfg.ExportDir,
		logger:    logger,
	}
	s.registerTools()

	logger.WithField("server_name", name).Info("MCP server initialized")
	return s, nil
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t. It is used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
