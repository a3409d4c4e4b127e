package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelcap/internal/browser"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

type scriptedStream struct {
	chunks   chan []byte
	stopOnce sync.Once
	stopped  chan struct{}
	err      error
}

func newScriptedStream() *scriptedStream {
	return &scriptedStream{
		chunks:  make(chan []byte, 16),
		stopped: make(chan struct{}),
	}
}

func (s *scriptedStream) Chunks() <-chan []byte { return s.chunks }

func (s *scriptedStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		close(s.chunks)
	})
}

func (s *scriptedStream) Err() error { return s.err }

func (s *scriptedStream) emit(chunk []byte) { s.chunks <- chunk }

type scriptedEncoder struct {
	stream   *scriptedStream
	startErr error
	started  int
}

func (e *scriptedEncoder) Start(ctx context.Context, source FrameSource, opts EncodeOptions) (Stream, error) {
	e.started++
	if e.startErr != nil {
		return nil, e.startErr
	}
	return e.stream, nil
}

func (e *scriptedEncoder) Container() media.Format { return media.FormatWebM }

func testSource() FrameSource {
	return FrameSource{Rect: browser.Rect{Width: 640, Height: 360}}
}

func startSession(t *testing.T, enc Encoder, opts SessionOptions) *Session {
	t.Helper()
	session := NewSession(enc, logging.NewNop())
	if err := session.Start(context.Background(), testSource(), opts); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return session
}

func TestSessionPreservesChunkOrder(t *testing.T) {
	stream := newScriptedStream()
	enc := &scriptedEncoder{stream: stream}
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: time.Minute})

	stream.emit([]byte("alpha"))
	stream.emit([]byte("beta"))
	stream.emit(nil)
	stream.emit([]byte("gamma"))
	session.Stop()

	asset, err := session.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if asset.Format != media.FormatWebM {
		t.Fatalf("expected webm asset, got %s", asset.Format)
	}
	if !bytes.Equal(asset.Bytes, []byte("alphabetagamma")) {
		t.Fatalf("chunks reordered or lost: %q", asset.Bytes)
	}
	if session.State() != StateComplete {
		t.Fatalf("expected complete state, got %s", session.State())
	}
}

func TestSessionAutoStopsAtDuration(t *testing.T) {
	stream := newScriptedStream()
	enc := &scriptedEncoder{stream: stream}
	duration := 50 * time.Millisecond
	started := time.Now()
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: duration})

	stream.emit([]byte("frame"))

	select {
	case <-stream.stopped:
	case <-time.After(duration + 2*time.Second):
		t.Fatal("stream was never stopped by the duration timer")
	}
	if elapsed := time.Since(started); elapsed < duration {
		t.Fatalf("stopped after %v, before the %v duration elapsed", elapsed, duration)
	}

	if _, err := session.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	stream := newScriptedStream()
	enc := &scriptedEncoder{stream: stream}
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: time.Minute})

	stream.emit([]byte("only"))
	session.Stop()
	session.Stop()
	session.Stop()

	asset, err := session.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if string(asset.Bytes) != "only" {
		t.Fatalf("unexpected asset %q", asset.Bytes)
	}
}

func TestSessionEmptyRecording(t *testing.T) {
	stream := newScriptedStream()
	enc := &scriptedEncoder{stream: stream}
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: time.Minute})

	session.Stop()

	_, err := session.Wait(context.Background())
	if !errors.Is(err, services.ErrEmptyRecording) {
		t.Fatalf("expected ErrEmptyRecording, got %v", err)
	}
	if session.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", session.State())
	}
}

func TestSessionEncoderStartFailure(t *testing.T) {
	enc := &scriptedEncoder{startErr: errors.New("muxer missing")}
	session := NewSession(enc, logging.NewNop())

	err := session.Start(context.Background(), testSource(), SessionOptions{FrameRate: 12, Duration: time.Minute})
	if !errors.Is(err, services.ErrEncoderRuntime) {
		t.Fatalf("expected ErrEncoderRuntime, got %v", err)
	}
	if session.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", session.State())
	}
	if _, err := session.Wait(context.Background()); !errors.Is(err, services.ErrEncoderRuntime) {
		t.Fatalf("Wait should surface the start failure, got %v", err)
	}
}

func TestSessionStreamFailureMidRecording(t *testing.T) {
	stream := newScriptedStream()
	stream.err = errors.New("muxer crashed")
	enc := &scriptedEncoder{stream: stream}
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: time.Minute})

	stream.emit([]byte("partial"))
	stream.Stop()

	_, err := session.Wait(context.Background())
	if !errors.Is(err, services.ErrEncoderRuntime) {
		t.Fatalf("expected ErrEncoderRuntime, got %v", err)
	}
	if session.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", session.State())
	}
}

func TestSessionRejectsSecondStart(t *testing.T) {
	stream := newScriptedStream()
	enc := &scriptedEncoder{stream: stream}
	session := startSession(t, enc, SessionOptions{FrameRate: 12, Duration: time.Minute})

	err := session.Start(context.Background(), testSource(), SessionOptions{FrameRate: 12, Duration: time.Minute})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation on reuse, got %v", err)
	}
	if enc.started != 1 {
		t.Fatalf("encoder started %d times, want 1", enc.started)
	}

	session.Stop()
	session.Wait(context.Background())
}

func TestSessionRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name string
		opts SessionOptions
	}{
		{"zero frame rate", SessionOptions{FrameRate: 0, Duration: time.Second}},
		{"zero duration", SessionOptions{FrameRate: 12, Duration: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := NewSession(&scriptedEncoder{stream: newScriptedStream()}, logging.NewNop())
			err := session.Start(context.Background(), testSource(), tc.opts)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}
