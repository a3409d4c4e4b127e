package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

// State is a recording session lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// SessionOptions bounds one recording run. Immutable once Start is called.
type SessionOptions struct {
	FrameRate   int
	Duration    time.Duration
	JPEGQuality int
}

// Session drives a streaming encoder for a bounded duration and finalizes the
// collected chunks into a single raw asset. A session is single-use: terminal
// states are permanent and a new recording needs a fresh Session.
type Session struct {
	encoder Encoder
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	startedAt time.Time
	chunks    [][]byte
	asset     media.Asset
	err       error

	stream   Stream
	timer    *time.Timer
	stopOnce sync.Once
	done     chan struct{}
}

// NewSession constructs an idle session around the given encoder.
func NewSession(encoder Encoder, logger *slog.Logger) *Session {
	return &Session{
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "capture"),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the encoder stream and schedules the automatic stop. Valid only
// from idle.
func (s *Session) Start(ctx context.Context, source FrameSource, opts SessionOptions) error {
	if opts.FrameRate <= 0 {
		return services.Wrap(services.ErrValidation, "capture", "start", "frame rate must be positive", nil)
	}
	if opts.Duration <= 0 {
		return services.Wrap(services.ErrValidation, "capture", "start", "duration must be positive", nil)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrValidation, "capture", "start", "session already started (state "+string(state)+")", nil)
	}
	s.state = StateRecording
	s.startedAt = time.Now()
	s.mu.Unlock()

	stream, err := s.encoder.Start(ctx, source, EncodeOptions{
		FrameRate:   opts.FrameRate,
		JPEGQuality: opts.JPEGQuality,
	})
	if err != nil {
		wrapped := services.Wrap(services.ErrEncoderRuntime, "capture", "start", "open encoder stream", err)
		s.fail(wrapped)
		return wrapped
	}

	s.mu.Lock()
	s.stream = stream
	s.timer = time.AfterFunc(opts.Duration, s.Stop)
	s.mu.Unlock()

	s.logger.Info("recording started",
		logging.Int("frame_rate", opts.FrameRate),
		logging.Duration("duration", opts.Duration),
		logging.Int("surface_width", source.Width()),
		logging.Int("surface_height", source.Height()),
	)

	go s.consume(stream)
	return nil
}

// Stop ends the recording. Valid from recording; a no-op in every other
// state, including repeated calls.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRecording || s.stream == nil {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	stream := s.stream
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.stopOnce.Do(stream.Stop)
}

// Wait blocks until the session reaches a terminal state and returns the
// finalized asset or the terminal failure.
func (s *Session) Wait(ctx context.Context) (media.Asset, error) {
	select {
	case <-ctx.Done():
		return media.Asset{}, ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset, s.err
}

// Elapsed reports how long the session has been (or was) recording.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Session) consume(stream Stream) {
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		// Arrival order is the contract: consumers reconstruct the
		// asset by concatenating chunks exactly as delivered.
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}

	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		s.fail(services.Wrap(services.ErrEncoderRuntime, "capture", "record", "encoder stream failed", err))
		return
	}
	s.finalize()
}

func (s *Session) finalize() {
	s.mu.Lock()
	if s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	if s.timer != nil {
		s.timer.Stop()
	}

	total := 0
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	if total == 0 {
		s.state = StateFailed
		s.err = services.Wrap(services.ErrEmptyRecording, "capture", "finalize", "no encoded data was produced", nil)
		s.mu.Unlock()
		s.logger.Warn("recording finalized empty")
		close(s.done)
		return
	}

	var buf bytes.Buffer
	buf.Grow(total)
	for _, chunk := range s.chunks {
		buf.Write(chunk)
	}
	s.asset = media.Asset{Bytes: buf.Bytes(), Format: s.encoder.Container()}
	s.state = StateComplete
	chunkCount := len(s.chunks)
	s.chunks = nil
	s.mu.Unlock()

	s.logger.Info("recording complete",
		logging.Int("chunks", chunkCount),
		logging.Int("asset_bytes", total),
	)
	close(s.done)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateComplete || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.err = err
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.logger.Error("recording failed", logging.Error(err))
	close(s.done)
}
