/**
 * replaycheck CLI
 *
 * One-shot capture and analysis of a live stream. Grabs a handful of frames,
 * runs OCR on the top-right corner, and reports which frames carry a clock
 * timestamp or a replay marker. With --enqueue the batch is published to the
 * worker queue instead of running locally.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/streamops/replaycheck-worker/internal/classify"
	"github.com/streamops/replaycheck-worker/internal/config"
	"github.com/streamops/replaycheck-worker/internal/logging"
	"github.com/streamops/replaycheck-worker/internal/ocr"
	"github.com/streamops/replaycheck-worker/internal/queue"
	"github.com/streamops/replaycheck-worker/internal/storage"
	"github.com/streamops/replaycheck-worker/internal/worker"
)

func newRootCommand() *cobra.Command {
	var (
		frames    int
		noOCR     bool
		cropRatio float64
		outputDir string
		rulesPath string
		logLevel  string
		enqueue   bool
	)

	cmd := &cobra.Command{
		Use:           "replaycheck <stream-url>",
		Short:         "Capture frames from a live stream and check for replay markers",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if cmd.Flags().Changed("frames") {
				cfg.FrameCount = frames
			}
			if cmd.Flags().Changed("no-ocr") {
				cfg.OCREnabled = !noOCR
			}
			if cmd.Flags().Changed("crop-ratio") {
				cfg.CropRatio = cropRatio
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("rules") {
				cfg.RulesPath = rulesPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if enqueue {
				return enqueueBatch(ctx, cfg, args[0])
			}
			return runBatch(ctx, cfg, args[0])
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "Number of frames to capture")
	cmd.Flags().BoolVar(&noOCR, "no-ocr", false, "Save frames without running OCR")
	cmd.Flags().Float64Var(&cropRatio, "crop-ratio", 0, "Top-right crop ratio per dimension")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for session output")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a TOML classification rules file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Publish the batch to the worker queue instead of running locally")

	return cmd
}

func enqueueBatch(ctx context.Context, cfg *config.Config, streamURL string) error {
	producer, err := queue.NewProducer(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return err
	}
	defer producer.Close()

	ocrEnabled := cfg.OCREnabled
	batchID, err := producer.Enqueue(ctx, &queue.BatchTask{
		StreamURL:  streamURL,
		FrameCount: cfg.FrameCount,
		OCREnabled: &ocrEnabled,
	})
	if err != nil {
		return err
	}

	fmt.Printf("enqueued batch %s on queue %q\n", batchID, cfg.QueueName)
	return nil
}

func runBatch(ctx context.Context, cfg *config.Config, streamURL string) error {
	logger := logging.New(cfg.LogLevel)

	rules := classify.DefaultRules()
	if cfg.RulesPath != "" {
		var err error
		rules, err = classify.LoadRules(cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
	}

	var engine ocr.Engine
	if cfg.OCREnabled {
		engine = ocr.NewTesseractEngine(cfg.OCRLanguages)
		defer engine.Close()
	}

	var db *storage.PostgresClient
	if cfg.DatabaseURL != "" {
		var err error
		db, err = storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
	}

	runner, err := worker.NewRunner(&worker.RunnerConfig{
		Config: cfg,
		Rules:  rules,
		Engine: engine,
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	outcome, err := runner.RunBatch(ctx, &worker.BatchRequest{
		StreamURL:  streamURL,
		FrameCount: cfg.FrameCount,
		OCREnabled: cfg.OCREnabled,
	})
	if err != nil {
		return err
	}

	renderOutcome(os.Stdout, outcome, cfg.OCREnabled)
	return nil
}
