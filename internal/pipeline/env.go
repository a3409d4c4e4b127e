package pipeline

import (
	"context"
	"log/slog"

	"reelcap/internal/browser"
	"reelcap/internal/capture"
	"reelcap/internal/convert"
	"reelcap/internal/deliver"
	"reelcap/internal/history"
	"reelcap/internal/media"
	"reelcap/internal/viewport"
)

// Env bundles the resources one job run needs. The raw and converted assets
// flow between stages through here; nothing in Env survives the run.
type Env struct {
	Logger  *slog.Logger
	Store   *history.Store
	Page    browser.Page
	Encoder capture.Encoder
	Fitter  *viewport.Fitter
	Channel *deliver.Channel

	// AcquireEngine returns a ready engine handle for the conversion stage.
	// Typically backed by engine.Loader.EnsureReady.
	AcquireEngine func(ctx context.Context) (convert.EngineHandle, error)
	// Subscribe registers an engine load progress observer. Optional.
	Subscribe func(fn func(percent int)) (cancel func())

	// JPEGQuality applies to every frame grab during recording.
	JPEGQuality int

	source    capture.FrameSource
	raw       media.Asset
	converted media.Asset
	handle    convert.EngineHandle
}
