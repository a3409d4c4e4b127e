package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"reelcap/internal/browser"
	"reelcap/internal/capture"
	"reelcap/internal/convert"
	"reelcap/internal/deliver"
	"reelcap/internal/history"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
	"reelcap/internal/testsupport"
	"reelcap/internal/viewport"
)

var (
	webmBytes = []byte{0x1a, 0x45, 0xdf, 0xa3, 0x42, 0x86, 0x81, 0x01}
	mp4Bytes  = append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom....")...)
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00")
)

type fakeElement struct {
	rect browser.Rect
}

func (f *fakeElement) BoundingBox() (browser.Rect, error) { return f.rect, nil }
func (f *fakeElement) TextContent() (string, error)       { return "", nil }
func (f *fakeElement) GetAttribute(string) (string, error) {
	return "", nil
}
func (f *fakeElement) IsVisible() (bool, error) { return true, nil }
func (f *fakeElement) Click() error             { return nil }

type fakePage struct {
	elements []browser.Element
	pressed  []string
}

func (f *fakePage) URL() string { return "https://example.test/board" }

func (f *fakePage) QuerySelectorAll(selector string) ([]browser.Element, error) {
	if strings.Contains(selector, "canvas") {
		return f.elements, nil
	}
	return nil, nil
}

func (f *fakePage) Evaluate(string, ...any) (any, error) { return nil, nil }

func (f *fakePage) Press(key string) error {
	f.pressed = append(f.pressed, key)
	return nil
}

func (f *fakePage) Screenshot(browser.ScreenshotOptions) ([]byte, error) {
	return []byte{0xff, 0xd8, 0xff}, nil
}

type fakeStream struct {
	chunks   chan []byte
	stopOnce sync.Once
}

func (f *fakeStream) Chunks() <-chan []byte { return f.chunks }
func (f *fakeStream) Stop()                 { f.stopOnce.Do(func() { close(f.chunks) }) }
func (f *fakeStream) Err() error            { return nil }

type fakeEncoder struct {
	startErr error
}

func (f *fakeEncoder) Start(ctx context.Context, source capture.FrameSource, opts capture.EncodeOptions) (capture.Stream, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	stream := &fakeStream{chunks: make(chan []byte, 2)}
	stream.chunks <- webmBytes[:4]
	stream.chunks <- webmBytes[4:]
	return stream, nil
}

func (f *fakeEncoder) Container() media.Format { return media.FormatWebM }

// fakeEngine simulates conversion passes by writing the output slot each
// invocation names as its final argument.
type fakeEngine struct {
	slots       map[string][]byte
	invocations [][]string
	failOn      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{slots: make(map[string][]byte)}
}

func (f *fakeEngine) WriteSlot(name string, data []byte) error {
	f.slots[name] = data
	return nil
}

func (f *fakeEngine) ReadSlot(name string) ([]byte, error) {
	data, ok := f.slots[name]
	if !ok {
		return nil, fmt.Errorf("slot %s not found", name)
	}
	return data, nil
}

func (f *fakeEngine) RemoveSlot(name string) error {
	delete(f.slots, name)
	return nil
}

func (f *fakeEngine) SlotPath(name string) string { return "/slots/" + name }

func (f *fakeEngine) Invoke(ctx context.Context, args ...string) error {
	f.invocations = append(f.invocations, args)
	if f.failOn == len(f.invocations) {
		return errors.New("induced engine failure")
	}
	out := strings.TrimPrefix(args[len(args)-1], "/slots/")
	switch {
	case strings.HasSuffix(out, ".mp4"):
		f.slots[out] = mp4Bytes
	case strings.HasSuffix(out, ".gif"):
		f.slots[out] = gifBytes
	default:
		f.slots[out] = []byte("palette")
	}
	return nil
}

type testRig struct {
	runner *Runner
	store  *history.Store
	engine *fakeEngine
	output string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	engine := newFakeEngine()
	outputDir := cfg.Paths.OutputDir
	logger := logging.NewNop()

	env := &Env{
		Logger:  logger,
		Store:   store,
		Page:    &fakePage{elements: []browser.Element{&fakeElement{rect: browser.Rect{Width: 640, Height: 360}}}},
		Encoder: &fakeEncoder{},
		Fitter:  viewport.New(viewport.Options{FrameWidth: 1280, FrameHeight: 720, Settle: 1}, logger),
		Channel: deliver.NewChannel(outputDir, logger),
		AcquireEngine: func(ctx context.Context) (convert.EngineHandle, error) {
			return engine, nil
		},
		JPEGQuality: 80,
	}
	return &testRig{
		runner: NewRunner(env),
		store:  store,
		engine: engine,
		output: outputDir,
	}
}

func newJob(t *testing.T, rig *testRig, format string) *history.Job {
	t.Helper()
	job := &history.Job{
		RequestID:    uuid.NewString(),
		URL:          "https://example.test/board",
		Format:       format,
		FrameRate:    12,
		DurationMs:   50,
		FitRequested: true,
		Status:       history.StatusPending,
	}
	if err := rig.store.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestRunWebMPathDeliversRawOnce(t *testing.T) {
	rig := newTestRig(t)
	job := newJob(t, rig, "webm")

	if err := rig.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if job.Status != history.StatusCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}
	if !strings.HasSuffix(job.OutputPath, ".webm") {
		t.Fatalf("expected a .webm delivery, got %q", job.OutputPath)
	}
	if job.FallbackPath != "" {
		t.Fatalf("webm path must not produce a fallback, got %q", job.FallbackPath)
	}
	if len(rig.engine.invocations) != 0 {
		t.Fatal("webm path must not touch the conversion engine")
	}

	entries, _ := os.ReadDir(rig.output)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one delivered file, got %d", len(entries))
	}
	if job.SurfaceWidth != 640 || job.SurfaceHeight != 360 {
		t.Fatalf("surface dimensions not recorded: %dx%d", job.SurfaceWidth, job.SurfaceHeight)
	}
}

func TestRunMP4PathSingleInvocation(t *testing.T) {
	rig := newTestRig(t)
	job := newJob(t, rig, "mp4")

	if err := rig.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(rig.engine.invocations) != 1 {
		t.Fatalf("expected 1 engine invocation, saw %d", len(rig.engine.invocations))
	}
	if !strings.HasSuffix(job.OutputPath, ".mp4") {
		t.Fatalf("expected a .mp4 delivery, got %q", job.OutputPath)
	}
	if !strings.HasSuffix(job.FallbackPath, ".webm") {
		t.Fatalf("expected a raw .webm fallback, got %q", job.FallbackPath)
	}
	if len(rig.engine.slots) != 0 {
		t.Fatal("conversion slots were not cleaned up")
	}

	persisted, err := rig.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("load persisted job: %v", err)
	}
	if persisted.Status != history.StatusCompleted {
		t.Fatalf("persisted status %s, want completed", persisted.Status)
	}
}

func TestRunGIFPathTwoOrderedInvocations(t *testing.T) {
	rig := newTestRig(t)
	job := newJob(t, rig, "gif")

	if err := rig.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(rig.engine.invocations) != 2 {
		t.Fatalf("expected 2 engine invocations, saw %d", len(rig.engine.invocations))
	}
	first := strings.Join(rig.engine.invocations[0], " ")
	second := strings.Join(rig.engine.invocations[1], " ")
	if !strings.Contains(first, "palettegen") || !strings.Contains(second, "paletteuse") {
		t.Fatalf("gif passes out of order:\n%s\n%s", first, second)
	}
	if len(rig.engine.slots) != 0 {
		t.Fatal("conversion slots were not cleaned up")
	}
	if !strings.HasSuffix(job.OutputPath, ".gif") {
		t.Fatalf("expected a .gif delivery, got %q", job.OutputPath)
	}
}

func TestRunConversionFailureKeepsRawRecording(t *testing.T) {
	rig := newTestRig(t)
	rig.engine.failOn = 1
	job := newJob(t, rig, "mp4")

	err := rig.runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}

	if job.Status != history.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if !strings.HasSuffix(job.FallbackPath, ".webm") {
		t.Fatalf("raw recording was not kept: %q", job.FallbackPath)
	}
	if _, statErr := os.Stat(job.FallbackPath); statErr != nil {
		t.Fatalf("fallback file missing: %v", statErr)
	}

	persisted, loadErr := rig.store.GetByID(context.Background(), job.ID)
	if loadErr != nil {
		t.Fatalf("load persisted job: %v", loadErr)
	}
	if persisted.FallbackPath != job.FallbackPath {
		t.Fatal("fallback path was not persisted")
	}
	if persisted.ErrorMessage == "" {
		t.Fatal("failure guidance was not persisted")
	}
}

func TestRunNoFrameSourceFailsRecordStage(t *testing.T) {
	rig := newTestRig(t)
	rig.runner.env.Page = &fakePage{}
	job := newJob(t, rig, "webm")

	err := rig.runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrNoFrameSource) {
		t.Fatalf("expected ErrNoFrameSource, got %v", err)
	}
	if job.Status != history.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}

	entries, _ := os.ReadDir(rig.output)
	if len(entries) != 0 {
		t.Fatal("nothing should be delivered when no surface exists")
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	rig := newTestRig(t)
	job := newJob(t, rig, "avi")

	err := rig.runner.Run(context.Background(), job)
	if !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if job.Status != history.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
}

func TestHealthCheckReportsEveryStage(t *testing.T) {
	rig := newTestRig(t)
	healths := rig.runner.HealthCheck(context.Background())
	if len(healths) != 4 {
		t.Fatalf("expected 4 stage healths, got %d", len(healths))
	}
	for _, h := range healths {
		if !h.Ready {
			t.Fatalf("stage %s unexpectedly unhealthy: %s", h.Name, h.Detail)
		}
	}
}
