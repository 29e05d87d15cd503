/**
 * Frame acquisition from a live stream
 *
 * Decoding is delegated to an external ffmpeg process emitting MJPEG frames on
 * stdout. The source splits that byte stream into JPEG blobs, decodes them, and
 * hands out frames tagged with a 1-based, monotonically increasing index. Only
 * successfully decoded frames consume an index.
 */

package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/streamops/replaycheck-worker/internal/errors"
	"github.com/streamops/replaycheck-worker/internal/frame"
)

// Source yields frames one at a time. Next returns errors.ErrExhausted once
// the stream ends; a DECODE_FAILED ProcessingError is non-fatal and the caller
// may keep pulling.
type Source interface {
	Next(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// FFmpegSourceConfig holds source configuration
type FFmpegSourceConfig struct {
	StreamURL  string
	FrameCount int     // frames ffmpeg is asked to emit
	ScaleWidth int     // output width, height keeps aspect
	FPS        float64 // sampling rate
	FFmpegPath string
	Logger     *slog.Logger
}

// FFmpegSource reads MJPEG frames from an ffmpeg child process.
type FFmpegSource struct {
	cfg     *FFmpegSourceConfig
	logger  *slog.Logger
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	started bool
	done    bool
	index   int // last assigned frame index
	ordinal int // delivered blobs, including ones that failed to decode
}

// NewFFmpegSource creates a frame source for the given stream URL.
func NewFFmpegSource(cfg *FFmpegSourceConfig) (*FFmpegSource, error) {
	if cfg == nil || cfg.StreamURL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}

	out := *cfg
	if out.FrameCount <= 0 {
		out.FrameCount = 2
	}
	if out.ScaleWidth <= 0 {
		out.ScaleWidth = 1280
	}
	if out.FPS <= 0 {
		out.FPS = 1.0
	}
	if out.FFmpegPath == "" {
		out.FFmpegPath = "ffmpeg"
	}

	logger := out.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FFmpegSource{cfg: &out, logger: logger}, nil
}

// Args returns the ffmpeg invocation for this source.
func (s *FFmpegSource) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", s.cfg.StreamURL,
		"-vf", fmt.Sprintf("scale=%d:-1,fps=%g", s.cfg.ScaleWidth, s.cfg.FPS),
		"-frames:v", fmt.Sprint(s.cfg.FrameCount),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}
}

func (s *FFmpegSource) start(ctx context.Context) error {
	if _, err := exec.LookPath(s.cfg.FFmpegPath); err != nil {
		return errors.NewSourceUnavailableError(s.cfg.StreamURL,
			fmt.Errorf("ffmpeg not found at %q: %w", s.cfg.FFmpegPath, err))
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, s.cfg.FFmpegPath, s.Args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.NewSourceUnavailableError(s.cfg.StreamURL, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return errors.NewSourceUnavailableError(s.cfg.StreamURL, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 32*1024*1024)
	scanner.Split(splitJPEG)

	s.cmd = cmd
	s.stdout = stdout
	s.scanner = scanner
	s.cancel = cancel
	s.started = true

	s.logger.Debug("ffmpeg started", "url", s.cfg.StreamURL, "args", s.Args())
	return nil
}

// Next returns the next decoded frame. It blocks on the child process, so the
// passed context bounds how long the source waits for stream data.
func (s *FFmpegSource) Next(ctx context.Context) (*frame.Frame, error) {
	if s.done {
		return nil, errors.ErrExhausted
	}
	if !s.started {
		if err := s.start(ctx); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.scanner.Scan() {
		s.done = true
		if err := s.scanner.Err(); err != nil {
			s.logger.Warn("frame stream ended with read error", "error", err)
		}
		return nil, errors.ErrExhausted
	}

	blob := s.scanner.Bytes()
	s.ordinal++

	img, err := jpeg.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.NewDecodeFailedError(s.ordinal, err)
	}

	s.index++
	return &frame.Frame{
		Image:      img,
		Index:      s.index,
		CapturedAt: time.Now(),
	}, nil
}

// Close terminates the ffmpeg process if it is still running.
func (s *FFmpegSource) Close() error {
	if !s.started {
		return nil
	}
	s.cancel()

	// Drain so the child can exit; the error from Wait after cancel carries
	// no signal worth propagating.
	io.Copy(io.Discard, s.stdout)
	s.cmd.Wait()
	return nil
}

// splitJPEG is a bufio.SplitFunc that tokenizes a concatenated JPEG stream on
// SOI/EOI markers, discarding any bytes between frames.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	soi := bytes.Index(data, jpegSOI)
	if soi < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep the last two bytes in case they are a partial SOI marker.
		if len(data) > 2 {
			return len(data) - 2, nil, nil
		}
		return 0, nil, nil
	}

	eoi := bytes.Index(data[soi+len(jpegSOI):], jpegEOI)
	if eoi < 0 {
		if atEOF {
			// Truncated trailing frame; drop it.
			return len(data), nil, nil
		}
		return soi, nil, nil
	}

	end := soi + len(jpegSOI) + eoi + len(jpegEOI)
	return end, data[soi:end], nil
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)
