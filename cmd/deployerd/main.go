package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rxtech-lab/launchpad-deployer/internal/config"
	"github.com/rxtech-lab/launchpad-deployer/internal/database"
	"github.com/rxtech-lab/launchpad-deployer/internal/pipeline"
	"github.com/rxtech-lab/launchpad-deployer/internal/server"
	"go.uber.org/zap"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Launchpad Deployer\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", CommitHash)
		fmt.Printf("Built: %s\n", BuildTime)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	svcs, err := server.InitializeServices(db.DB, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	orchestrator := pipeline.New(cfg.Pipeline, svcs, logger)
	if err := orchestrator.Start(); err != nil {
		logger.Fatal("Failed to start pipeline", zap.Error(err))
	}

	metricsServer := server.NewMetricsServer(cfg.MetricsPort, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("deployer started",
		zap.String("version", Version),
		zap.String("metrics_port", cfg.MetricsPort))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", zap.Error(err))
	}

	orchestrator.Stop()
	logger.Info("shutdown complete")
}

func openDatabase(cfg *config.Config) (*database.Database, error) {
	if cfg.PostgresURL != "" {
		return database.NewPostgresDatabase(cfg.PostgresURL)
	}
	return database.NewDatabase(cfg.DatabasePath)
}
