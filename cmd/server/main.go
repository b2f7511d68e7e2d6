package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/api"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/bootstrap"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/config"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)
	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting tumor board extraction server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer components.Close()

	server := api.NewServer(configManager, components.Processor, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
