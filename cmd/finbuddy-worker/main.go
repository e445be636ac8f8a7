package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finbuddy/internal/amqp"
	"finbuddy/internal/analysis"
	"finbuddy/internal/config"
	"finbuddy/internal/export"
	"finbuddy/internal/openai"
	"finbuddy/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting finbuddy-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	generator := openai.NewClient(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		APIURL:  cfg.OpenAIAPIURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})

	var exporter analysis.SnapshotExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := export.NewSheetsExporterFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheets
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	orchestrator := analysis.NewOrchestrator(analysis.OrchestratorConfig{
		Expenses:  repo,
		Snapshots: repo,
		Generator: generator,
		UseAI:     config.UseAI,
		Exporter:  exporter,
	})

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// One consumer per queue: runs are processed one at a time, in order.
		return amqpClient.ConsumeAnalysisRuns(ctx, func(msg *amqp.AnalysisRunMessage) error {
			result, err := orchestrator.RunAuto(ctx)
			if err != nil {
				return err
			}
			logger.Info("Automatic analysis completed",
				"reason", msg.Reason,
				"snapshot_id", result.Snapshot.ID,
				"outcome", result.Outcome)
			return nil
		})
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
