package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finbuddy/internal/amqp"
	"finbuddy/internal/analysis"
	"finbuddy/internal/config"
	"finbuddy/internal/export"
	apphttp "finbuddy/internal/http"
	"finbuddy/internal/openai"
	"finbuddy/internal/services"
	"finbuddy/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
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
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	orchestrator := analysis.NewOrchestrator(analysis.OrchestratorConfig{
		Expenses:  repo,
		Snapshots: repo,
		Generator: generator,
		UseAI:     config.UseAI,
		Exporter:  exporter,
	})

	// With a broker the worker consumes run requests; without one they run
	// inline on the request path.
	var trigger services.AnalysisTrigger
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		trigger = services.NewQueueTrigger(amqpClient)
		logger.Info("Analysis trigger: AMQP queue", "queue", cfg.AMQPQueue)
	} else {
		trigger = services.NewInlineTrigger(orchestrator)
		logger.Info("Analysis trigger: inline (no AMQP URL configured)")
	}

	expenseService := services.NewExpenseService(repo, trigger)
	importService := services.NewImportService(repo, trigger)
	analysisService := services.NewAnalysisService(orchestrator, repo)
	maintenanceService := services.NewMaintenanceService(repo, importService)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:    expenseService,
		Imports:     importService,
		Analysis:    analysisService,
		Maintenance: maintenanceService,
	})
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finbuddy server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
