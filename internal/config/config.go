/**
 * Configuration for the replay-check worker
 *
 * Loads configuration from environment variables.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + batch status mirror)
	RedisURL  string
	QueueName string

	// PostgreSQL configuration; empty disables result persistence
	DatabaseURL string

	// Capture configuration
	FrameCount int
	ScaleWidth int
	CaptureFPS float64
	OutputDir  string

	// Analysis configuration
	OCREnabled   bool
	OCRLanguages []string
	CropRatio    float64
	RulesPath    string

	// Worker configuration
	WorkerConcurrency   int
	ProcessingTimeoutMs int

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "replaycheck:batches"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		FrameCount:          getEnvAsIntOrDefault("FRAME_COUNT", 2),
		ScaleWidth:          getEnvAsIntOrDefault("SCALE_WIDTH", 1280),
		CaptureFPS:          getEnvAsFloatOrDefault("CAPTURE_FPS", 1.0),
		OutputDir:           getEnvOrDefault("OUTPUT_DIR", "output"),
		OCREnabled:          getEnvAsBoolOrDefault("OCR_ENABLED", true),
		OCRLanguages:        splitLanguages(getEnvOrDefault("OCR_LANGUAGES", "chi_sim+eng")),
		CropRatio:           getEnvAsFloatOrDefault("CROP_RATIO", 0.25),
		RulesPath:           getEnvOrDefault("RULES_PATH", ""),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 1),
		ProcessingTimeoutMs: getEnvAsIntOrDefault("PROCESSING_TIMEOUT_MS", 300000),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.FrameCount < 1 || c.FrameCount > 100 {
		return fmt.Errorf("FRAME_COUNT must be between 1 and 100, got %d", c.FrameCount)
	}

	if c.CropRatio <= 0 || c.CropRatio > 1 {
		return fmt.Errorf("CROP_RATIO must be in (0, 1], got %g", c.CropRatio)
	}

	if c.ScaleWidth < 16 || c.ScaleWidth > 7680 {
		return fmt.Errorf("SCALE_WIDTH must be between 16 and 7680, got %d", c.ScaleWidth)
	}

	if c.CaptureFPS <= 0 || c.CaptureFPS > 60 {
		return fmt.Errorf("CAPTURE_FPS must be in (0, 60], got %g", c.CaptureFPS)
	}

	// The Tesseract client handle is serialized with a mutex, so more workers
	// than a handful just queue up behind it.
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 8 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 8, got %d", c.WorkerConcurrency)
	}

	// A batch is a handful of frames; anything past an hour means a wedged
	// stream, not a slow one.
	if c.ProcessingTimeoutMs < 1000 || c.ProcessingTimeoutMs > 3600000 {
		return fmt.Errorf("PROCESSING_TIMEOUT_MS must be between 1000 and 3600000, got %d", c.ProcessingTimeoutMs)
	}

	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one trained language")
	}

	return nil
}

// splitLanguages accepts the Tesseract "chi_sim+eng" convention as well as
// comma-separated lists.
func splitLanguages(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '+' || r == ','
	})
	langs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			langs = append(langs, f)
		}
	}
	return langs
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
