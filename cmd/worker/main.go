/**
 * Replay-check worker - main entry point
 *
 * Long-running worker that consumes capture-batch tasks from a Redis queue.
 * Each task grabs a few frames from a live stream with ffmpeg, saves full and
 * cropped images, runs Tesseract OCR on the crops, and classifies the text
 * for clock timestamps and replay markers.
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/streamops/replaycheck-worker/internal/classify"
	"github.com/streamops/replaycheck-worker/internal/config"
	"github.com/streamops/replaycheck-worker/internal/logging"
	"github.com/streamops/replaycheck-worker/internal/ocr"
	"github.com/streamops/replaycheck-worker/internal/queue"
	"github.com/streamops/replaycheck-worker/internal/storage"
	"github.com/streamops/replaycheck-worker/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	logger.Info("replay-check worker starting",
		"redis", cfg.RedisURL,
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"ocr", cfg.OCREnabled,
		"output", cfg.OutputDir)

	rules := classify.DefaultRules()
	if cfg.RulesPath != "" {
		rules, err = classify.LoadRules(cfg.RulesPath)
		if err != nil {
			logger.Error("failed to load classifier rules", "path", cfg.RulesPath, "error", err)
			os.Exit(1)
		}
		logger.Info("classifier rules loaded", "path", cfg.RulesPath)
	}

	var engine ocr.Engine
	if cfg.OCREnabled {
		engine = ocr.NewTesseractEngine(cfg.OCRLanguages)
		logger.Info("OCR engine configured", "languages", cfg.OCRLanguages)
		defer engine.Close()
	}

	var db *storage.PostgresClient
	if cfg.DatabaseURL != "" {
		db, err = storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		schemaCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err = db.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			logger.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		logger.Info("result persistence enabled")
	} else {
		logger.Info("DATABASE_URL not set, batch records stay on disk only")
	}

	runner, err := worker.NewRunner(&worker.RunnerConfig{
		Config: cfg,
		Rules:  rules,
		Engine: engine,
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to initialize batch runner", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Runner:            runner,
		Logger:            logger,
		OCRDefault:        cfg.OCREnabled,
		ProcessingTimeout: int64(cfg.ProcessingTimeoutMs),
	})
	if err != nil {
		logger.Error("failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}

	if err := consumer.Start(); err != nil {
		logger.Error("failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	logger.Info("worker ready, waiting for batch tasks")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig.String())

	if err := consumer.Stop(); err != nil {
		logger.Error("error stopping queue consumer", "error", err)
	}

	logger.Info("shutdown complete")
}
