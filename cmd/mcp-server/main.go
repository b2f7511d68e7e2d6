// Package main is the standalone MCP entry point. It needs no external
// services: the cache is in memory and runs are stored in SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/bootstrap"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/config"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/mcp"
)

func main() {
	lite := config.LoadLiteConfig()
	if err := lite.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cfg := lite.Config()
	logger := config.NewLogger(cfg.Logging)
	logger.WithField("data_dir", lite.DataDir).Info("Starting tumor board extraction MCP server (lite)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer components.Close()

	server, err := mcp.NewServer(cfg.MCP, components.Processor, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("MCP server stopped")
}
