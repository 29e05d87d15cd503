package config

import (
	"testing"
)

// clearEnv blanks every variable LoadConfig reads so the ambient environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_URL", "QUEUE_NAME", "DATABASE_URL",
		"FRAME_COUNT", "SCALE_WIDTH", "CAPTURE_FPS", "OUTPUT_DIR",
		"OCR_ENABLED", "OCR_LANGUAGES", "CROP_RATIO", "RULES_PATH",
		"WORKER_CONCURRENCY", "PROCESSING_TIMEOUT_MS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.QueueName != "replaycheck:batches" {
		t.Errorf("QueueName = %q", cfg.QueueName)
	}
	if cfg.FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", cfg.FrameCount)
	}
	if cfg.CropRatio != 0.25 {
		t.Errorf("CropRatio = %g, want 0.25", cfg.CropRatio)
	}
	if cfg.ProcessingTimeoutMs != 300000 {
		t.Errorf("ProcessingTimeoutMs = %d, want 300000", cfg.ProcessingTimeoutMs)
	}
	if len(cfg.OCRLanguages) != 2 || cfg.OCRLanguages[0] != "chi_sim" || cfg.OCRLanguages[1] != "eng" {
		t.Errorf("OCRLanguages = %v", cfg.OCRLanguages)
	}
}

func TestLoadConfigProcessingTimeoutOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCESSING_TIMEOUT_MS", "60000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ProcessingTimeoutMs != 60000 {
		t.Errorf("ProcessingTimeoutMs = %d, want 60000", cfg.ProcessingTimeoutMs)
	}
}

func TestValidateRejectsOutOfRangeTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCESSING_TIMEOUT_MS", "500")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected sub-second processing timeout to be rejected")
	}
}

func TestSplitLanguages(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"chi_sim+eng", []string{"chi_sim", "eng"}},
		{"chi_sim, eng", []string{"chi_sim", "eng"}},
		{"eng", []string{"eng"}},
		{"++", nil},
	}
	for _, tc := range cases {
		got := splitLanguages(tc.raw)
		if len(got) != len(tc.want) {
			t.Errorf("splitLanguages(%q) = %v, want %v", tc.raw, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitLanguages(%q) = %v, want %v", tc.raw, got, tc.want)
				break
			}
		}
	}
}
