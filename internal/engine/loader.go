package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"reelcap/internal/logging"
	"reelcap/internal/services"
)

// LoadState is the loader lifecycle phase.
type LoadState string

const (
	StateUnloaded LoadState = "unloaded"
	StateLoading  LoadState = "loading"
	StateReady    LoadState = "ready"
	StateError    LoadState = "error"
)

// Progress milestones on the load scale.
const (
	progressStarted  = 10
	progressFetching = 10
	progressFetched  = 50
	progressReady    = 100
	progressFailed   = 0
)

// ErrResetWhileLoading is returned when Reset is called with a load in
// flight.
var ErrResetWhileLoading = errors.New("engine loader busy: load in flight")

// Options configures a Loader.
type Options struct {
	// Dir is the engine's private storage directory. Slots and downloaded
	// artifacts live here.
	Dir string
	// BinaryPath, when set, is used verbatim and disables artifact fetch.
	BinaryPath string
	// ArtifactURL is downloaded when no binary resolves locally.
	ArtifactURL string
	// LoadTimeout caps a whole load attempt. Zero uses 45 seconds.
	LoadTimeout time.Duration
	// FetchTimeout caps each download attempt.
	FetchTimeout time.Duration
	// FetchRetries bounds download attempts. Zero means a single attempt.
	FetchRetries int
	// HTTPClient overrides the artifact fetch client.
	HTTPClient *http.Client
}

// Loader provisions the conversion engine at most once and shares the result
// with every caller. The first EnsureReady triggers the load; concurrent
// callers join the same in-flight attempt. A failed load is sticky: every
// subsequent EnsureReady returns the same error until Reset.
type Loader struct {
	opts     Options
	logger   *slog.Logger
	progress *progressRegistry

	mu         sync.Mutex
	state      LoadState
	handle     *Handle
	loadErr    error
	inflight   chan struct{}
	generation uint64
}

// NewLoader constructs an unloaded Loader.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 45 * time.Second
	}
	return &Loader{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "engine"),
		progress: newProgressRegistry(),
		state:    StateUnloaded,
	}
}

// State returns the loader lifecycle phase.
func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Progress returns the latest published load progress percentage.
func (l *Loader) Progress() int {
	return l.progress.current()
}

// Subscribe registers a progress observer. The latest value is replayed
// immediately. The returned cancel func unregisters the observer.
func (l *Loader) Subscribe(fn func(percent int)) (cancel func()) {
	return l.progress.subscribe(fn)
}

// EnsureReady returns a ready engine handle, loading the engine on first use.
// All concurrent callers share one load attempt and receive the same handle
// or the same error.
func (l *Loader) EnsureReady(ctx context.Context) (*Handle, error) {
	for {
		l.mu.Lock()
		switch l.state {
		case StateReady:
			handle := l.handle
			l.mu.Unlock()
			return handle, nil
		case StateError:
			err := l.loadErr
			l.mu.Unlock()
			return nil, err
		case StateLoading:
			wait := l.inflight
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-wait:
			}
			continue
		case StateUnloaded:
			l.state = StateLoading
			l.inflight = make(chan struct{})
			generation := l.generation
			done := l.inflight
			l.mu.Unlock()

			l.load(ctx, generation)
			close(done)
			continue
		default:
			l.mu.Unlock()
			return nil, services.Wrap(services.ErrEngineLoadFailed, "engine", "ensure", "loader in unknown state", nil)
		}
	}
}

// load runs one provisioning attempt under the load ceiling and records the
// terminal outcome.
func (l *Loader) load(ctx context.Context, generation uint64) {
	started := time.Now()
	l.progress.publish(progressStarted)
	l.logger.Info("engine load started")

	loadCtx, cancel := context.WithTimeout(ctx, l.opts.LoadTimeout)
	defer cancel()

	binary, err := l.resolveBinary(loadCtx)
	if err != nil {
		marker := services.ErrEngineLoadFailed
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			marker = services.ErrEngineLoadTimeout
		}
		wrapped := services.Wrap(marker, "engine", "load", "provision engine binary", err)

		l.mu.Lock()
		l.state = StateError
		l.loadErr = wrapped
		l.mu.Unlock()

		l.progress.publish(progressFailed)
		l.logger.Error("engine load failed",
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(wrapped),
		)
		return
	}
	l.progress.publish(progressFetched)

	handle := &Handle{
		loader:     l,
		generation: generation,
		dir:        l.opts.Dir,
		binary:     binary,
	}
	if err := handle.prepareStorage(); err != nil {
		wrapped := services.Wrap(services.ErrEngineLoadFailed, "engine", "load", "prepare engine storage", err)
		l.mu.Lock()
		l.state = StateError
		l.loadErr = wrapped
		l.mu.Unlock()
		l.progress.publish(progressFailed)
		return
	}

	l.mu.Lock()
	l.state = StateReady
	l.handle = handle
	l.mu.Unlock()

	l.progress.publish(progressReady)
	l.logger.Info("engine ready",
		logging.String("binary", binary),
		logging.Duration("elapsed", time.Since(started)),
	)
}

// Reset clears a terminal state so the next EnsureReady starts fresh. The
// generation is bumped so handles issued before the reset become stale.
// Refused while a load is in flight.
func (l *Loader) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateLoading {
		return ErrResetWhileLoading
	}
	l.state = StateUnloaded
	l.handle = nil
	l.loadErr = nil
	l.generation++
	l.logger.Info("engine loader reset")
	return nil
}

func (l *Loader) currentGeneration() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}
