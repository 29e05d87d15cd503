/**
 * Session output store
 *
 * Each run gets its own timestamped directory under the configured output
 * root. Frames and crops are written as JPEG with the same quality the
 * capture pipeline has always used.
 */

package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"
)

const (
	sessionDirLayout = "20060102_150405"
	jpegQuality      = 95
)

// SessionStore persists frame images into a per-run directory. It implements
// the frame processor's Store interface.
type SessionStore struct {
	dir string
	now func() time.Time
}

// NewSessionStore creates the session directory under outputDir.
func NewSessionStore(outputDir string) (*SessionStore, error) {
	return newSessionStore(outputDir, time.Now)
}

func newSessionStore(outputDir string, now func() time.Time) (*SessionStore, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	dir := filepath.Join(outputDir, now().Format(sessionDirLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", dir, err)
	}

	return &SessionStore{dir: dir, now: now}, nil
}

// Dir returns the session directory path.
func (s *SessionStore) Dir() string { return s.dir }

// SaveFrame writes a full frame image.
func (s *SessionStore) SaveFrame(index int, img image.Image) (string, error) {
	name := fmt.Sprintf("frame_%02d_%d.jpg", index, s.now().Unix())
	return s.save(name, img)
}

// SaveCrop writes a cropped region image.
func (s *SessionStore) SaveCrop(index int, img image.Image) (string, error) {
	name := fmt.Sprintf("frame_%02d_cropped_%d.jpg", index, s.now().Unix())
	return s.save(name, img)
}

func (s *SessionStore) save(name string, img image.Image) (string, error) {
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return path, fmt.Errorf("create %s: %w", path, err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return path, fmt.Errorf("encode %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close %s: %w", path, err)
	}

	return path, nil
}
