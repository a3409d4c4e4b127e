package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"reelcap/internal/browser"
	"reelcap/internal/logging"
	"reelcap/internal/media"
)

var commandContext = exec.CommandContext

// Codec profiles in preference order: the modern profile is used when the
// muxer reports support, otherwise the baseline profile.
const (
	codecModern   = "libvpx-vp9"
	codecBaseline = "libvpx"
)

// ScreencastEncoder streams paced JPEG grabs of the frame source region into
// a system muxer process that emits WebM fragments on stdout.
type ScreencastEncoder struct {
	page   browser.Page
	binary string
	logger *slog.Logger

	probeOnce sync.Once
	codec     string
	probeErr  error
}

// NewScreencastEncoder constructs an encoder over the given page. binary is
// the muxer executable name or path (typically "ffmpeg").
func NewScreencastEncoder(page browser.Page, binary string, logger *slog.Logger) *ScreencastEncoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &ScreencastEncoder{
		page:   page,
		binary: binary,
		logger: logging.NewComponentLogger(logger, "encoder"),
	}
}

// Container reports the negotiated chunk container.
func (e *ScreencastEncoder) Container() media.Format {
	return media.FormatWebM
}

// Start negotiates a codec, launches the muxer, and begins pacing frames.
func (e *ScreencastEncoder) Start(ctx context.Context, source FrameSource, opts EncodeOptions) (Stream, error) {
	codec, err := e.negotiateCodec(ctx)
	if err != nil {
		return nil, err
	}

	frameRate := opts.FrameRate
	if frameRate <= 0 {
		frameRate = 12
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(frameRate),
		"-i", "pipe:0",
		"-c:v", codec,
		"-b:v", "2M",
		"-deadline", "realtime",
		"-cpu-used", "5",
		"-f", "webm",
		"pipe:1",
	}
	cmd := commandContext(ctx, e.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start muxer %s: %w", e.binary, err)
	}

	e.logger.Debug("muxer started",
		logging.String("codec", codec),
		logging.Int("frame_rate", frameRate),
	)

	stream := &screencastStream{
		chunks: make(chan []byte, 8),
		stop:   make(chan struct{}),
	}

	clip := source.Rect
	go e.pumpFrames(ctx, stream, stdin, clip, frameRate, opts.JPEGQuality)
	go stream.collect(cmd, stdout, &stderr)

	return stream, nil
}

// negotiateCodec probes the muxer's encoder inventory once and caches the
// chosen profile.
func (e *ScreencastEncoder) negotiateCodec(ctx context.Context) (string, error) {
	e.probeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		out, err := commandContext(probeCtx, e.binary, "-hide_banner", "-encoders").Output()
		if err != nil {
			e.probeErr = fmt.Errorf("probe muxer encoders: %w", err)
			return
		}
		inventory := string(out)
		switch {
		case strings.Contains(inventory, codecModern):
			e.codec = codecModern
		case strings.Contains(inventory, codecBaseline):
			e.codec = codecBaseline
		default:
			e.probeErr = fmt.Errorf("muxer %s supports neither %s nor %s", e.binary, codecModern, codecBaseline)
		}
	})
	return e.codec, e.probeErr
}

func (e *ScreencastEncoder) pumpFrames(ctx context.Context, stream *screencastStream, stdin io.WriteCloser, clip browser.Rect, frameRate, quality int) {
	defer stdin.Close()

	interval := time.Second / time.Duration(frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stream.setFrameErr(ctx.Err())
			return
		case <-stream.stop:
			return
		case <-ticker.C:
		}

		frame, err := e.page.Screenshot(browser.ScreenshotOptions{
			Clip:        &clip,
			JPEGQuality: quality,
		})
		if err != nil {
			stream.setFrameErr(fmt.Errorf("grab frame: %w", err))
			return
		}
		if _, err := stdin.Write(frame); err != nil {
			// The muxer closed its input; collect reports the real cause.
			return
		}
	}
}

type screencastStream struct {
	chunks chan []byte

	stopOnce sync.Once
	stop     chan struct{}

	mu       sync.Mutex
	err      error
	frameErr error
}

func (s *screencastStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *screencastStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *screencastStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return s.frameErr
	}
	return s.err
}

func (s *screencastStream) setFrameErr(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.frameErr == nil {
		s.frameErr = err
	}
	s.mu.Unlock()
	s.Stop()
}

// collect drains encoded fragments off the muxer's stdout in arrival order,
// then reaps the process.
func (s *screencastStream) collect(cmd *exec.Cmd, stdout io.Reader, stderr *strings.Builder) {
	defer close(s.chunks)

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.err = fmt.Errorf("read muxer output: %w", err)
				s.mu.Unlock()
			}
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		s.mu.Lock()
		if s.err == nil && s.frameErr == nil {
			detail := strings.TrimSpace(stderr.String())
			if detail != "" {
				s.err = fmt.Errorf("muxer exited: %w: %s", err, lastLine(detail))
			} else {
				s.err = fmt.Errorf("muxer exited: %w", err)
			}
		}
		s.mu.Unlock()
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
