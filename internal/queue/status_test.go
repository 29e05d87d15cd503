package queue

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/streamops/replaycheck-worker/internal/errors"
)

func TestFailureFieldsPlainError(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 25, 0, time.UTC)

	fields := failureFields(fmt.Errorf("stream vanished"), now)

	if fields["status"] != "failed" {
		t.Errorf("status = %v, want failed", fields["status"])
	}
	if fields["error"] != "stream vanished" {
		t.Errorf("error = %v", fields["error"])
	}
	if fields["updatedAt"] != "2026-08-31T14:30:25Z" {
		t.Errorf("updatedAt = %v", fields["updatedAt"])
	}
	if _, ok := fields["detail"]; ok {
		t.Error("plain errors should carry no detail field")
	}
}

func TestFailureFieldsKeepProcessingErrorDetail(t *testing.T) {
	cause := errors.NewPersistenceFailedError(3, "/out/frame_03.jpg", fmt.Errorf("disk full"))
	wrapped := fmt.Errorf("batch abc failed: %w", cause)

	fields := failureFields(wrapped, time.Now())

	raw, ok := fields["detail"].(string)
	if !ok {
		t.Fatal("expected a detail field for a ProcessingError cause")
	}

	var detail map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		t.Fatalf("detail is not valid JSON: %v", err)
	}
	if detail["error_code"] != string(errors.ErrorPersistenceFailed) {
		t.Errorf("error_code = %v", detail["error_code"])
	}
	if detail["frame_index"] != float64(3) {
		t.Errorf("frame_index = %v, want 3", detail["frame_index"])
	}
	if detail["path"] != "/out/frame_03.jpg" {
		t.Errorf("path = %v", detail["path"])
	}
	if detail["cause"] != "disk full" {
		t.Errorf("cause = %v", detail["cause"])
	}
}
