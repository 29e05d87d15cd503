package capture

import (
	"bufio"
	"bytes"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	first := encodeTestJPEG(t, 16, 9)
	second := encodeTestJPEG(t, 8, 8)

	var stream bytes.Buffer
	stream.Write(first)
	stream.Write([]byte{0x00, 0x01, 0x02}) // inter-frame noise
	stream.Write(second)

	scanner := bufio.NewScanner(&stream)
	scanner.Split(splitJPEG)

	var blobs [][]byte
	for scanner.Scan() {
		blob := make([]byte, len(scanner.Bytes()))
		copy(blob, scanner.Bytes())
		blobs = append(blobs, blob)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(blobs))
	}
	if !bytes.Equal(blobs[0], first) || !bytes.Equal(blobs[1], second) {
		t.Error("blobs do not match encoded frames")
	}

	for i, blob := range blobs {
		if _, err := jpeg.Decode(bytes.NewReader(blob)); err != nil {
			t.Errorf("blob %d does not decode: %v", i, err)
		}
	}
}

func TestSplitJPEGDropsTruncatedTail(t *testing.T) {
	full := encodeTestJPEG(t, 8, 8)
	truncated := encodeTestJPEG(t, 8, 8)
	truncated = truncated[:len(truncated)-2] // strip EOI

	var stream bytes.Buffer
	stream.Write(full)
	stream.Write(truncated)

	scanner := bufio.NewScanner(&stream)
	scanner.Split(splitJPEG)

	count := 0
	for scanner.Scan() {
		count++
	}
	if count != 1 {
		t.Errorf("got %d blobs, want 1 (truncated tail dropped)", count)
	}
}

func TestSplitJPEGEmptyStream(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader(""))
	scanner.Split(splitJPEG)
	if scanner.Scan() {
		t.Error("empty stream produced a token")
	}
}

func TestFFmpegSourceArgs(t *testing.T) {
	src, err := NewFFmpegSource(&FFmpegSourceConfig{
		StreamURL:  "rtmp://example.com/live",
		FrameCount: 3,
		ScaleWidth: 1280,
		FPS:        1.0,
	})
	if err != nil {
		t.Fatalf("NewFFmpegSource() error = %v", err)
	}

	args := strings.Join(src.Args(), " ")
	for _, want := range []string{
		"-i rtmp://example.com/live",
		"scale=1280:-1,fps=1",
		"-frames:v 3",
		"-f image2pipe",
		"-vcodec mjpeg",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestNewFFmpegSourceDefaults(t *testing.T) {
	src, err := NewFFmpegSource(&FFmpegSourceConfig{StreamURL: "http://example.com/s.m3u8"})
	if err != nil {
		t.Fatalf("NewFFmpegSource() error = %v", err)
	}
	if src.cfg.FrameCount != 2 || src.cfg.ScaleWidth != 1280 || src.cfg.FPS != 1.0 {
		t.Errorf("defaults not applied: %+v", src.cfg)
	}
}

func TestNewFFmpegSourceRequiresURL(t *testing.T) {
	if _, err := NewFFmpegSource(&FFmpegSourceConfig{}); err == nil {
		t.Fatal("expected error for missing stream URL")
	}
}
