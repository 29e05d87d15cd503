package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the replay-check worker
 *
 * Per-frame failures are structured so callers can decide whether a frame is
 * skipped, degraded, or fatal to the batch.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Per-frame errors
	ErrorDecodeFailed      ErrorCode = "DECODE_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorPersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	// Run-level errors
	ErrorSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	ErrorEngineInitFailed  ErrorCode = "ENGINE_INIT_FAILED"
)

// ErrExhausted signals that the frame source ended before the requested frame
// count was reached. It is a completion signal, not a failure.
var ErrExhausted = errors.New("frame source exhausted")

// ProcessingError represents a structured per-frame or per-run error
type ProcessingError struct {
	Code       ErrorCode
	Message    string
	FrameIndex int
	Timestamp  time.Time
	Details    map[string]interface{}
	Cause      error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err is a ProcessingError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// Factory functions for common errors

func NewDecodeFailedError(frameOrdinal int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:       ErrorDecodeFailed,
		Message:    fmt.Sprintf("Delivered frame %d is not a valid image", frameOrdinal),
		FrameIndex: frameOrdinal,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func NewOCRFailedError(frameIndex int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:       ErrorOCRFailed,
		Message:    fmt.Sprintf("OCR failed for frame %d", frameIndex),
		FrameIndex: frameIndex,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func NewPersistenceFailedError(frameIndex int, path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:       ErrorPersistenceFailed,
		Message:    fmt.Sprintf("Failed to persist frame %d", frameIndex),
		FrameIndex: frameIndex,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewSourceUnavailableError(streamURL string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorSourceUnavailable,
		Message:   "Frame source could not be started",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stream_url": streamURL,
		},
		Cause: cause,
	}
}

func NewEngineInitFailedError(cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineInitFailed,
		Message:   "OCR engine initialization failed",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code":  string(e.Code),
		"message":     e.Message,
		"frame_index": e.FrameIndex,
		"timestamp":   e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
