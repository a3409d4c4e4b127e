package viewport

import (
	"context"
	"log/slog"
	"time"

	"reelcap/internal/browser"
	"reelcap/internal/logging"
)

// Strategy is one way of coaxing the page into fitting its content to the
// frame. Apply returns true when the strategy believes it took effect.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, page browser.Page) (bool, error)
}

// Outcome records which strategy, if any, adjusted the page.
type Outcome struct {
	Applied  bool
	Strategy string
}

// Fitter runs an ordered strategy chain against a page. The first strategy
// that reports success wins; strategy failures are logged and skipped, never
// surfaced, because fitting is best-effort and recording proceeds either way.
type Fitter struct {
	strategies []Strategy
	settle     time.Duration
	logger     *slog.Logger
}

// Options configures a Fitter.
type Options struct {
	// FrameWidth and FrameHeight describe the recording frame the content
	// should fill.
	FrameWidth  int
	FrameHeight int
	// Settle is how long to wait after a successful adjustment for the page
	// to re-render. Zero uses a conservative default.
	Settle time.Duration
	// Strategies overrides the default chain. Nil keeps the default order.
	Strategies []Strategy
}

// New builds a Fitter with the default strategy chain: the page's own fit
// control, then its keyboard shortcut, then a computed geometric fit, then an
// explicit no-op so the chain always resolves.
func New(opts Options, logger *slog.Logger) *Fitter {
	settle := opts.Settle
	if settle <= 0 {
		settle = 600 * time.Millisecond
	}
	strategies := opts.Strategies
	if strategies == nil {
		strategies = []Strategy{
			&nativeControlStrategy{},
			&shortcutStrategy{},
			&geometricStrategy{frameWidth: opts.FrameWidth, frameHeight: opts.FrameHeight},
			noopStrategy{},
		}
	}
	return &Fitter{
		strategies: strategies,
		settle:     settle,
		logger:     logging.NewComponentLogger(logger, "viewport"),
	}
}

// Fit runs the chain. It never returns an error from a strategy; only context
// cancellation aborts the chain.
func (f *Fitter) Fit(ctx context.Context, page browser.Page) (Outcome, error) {
	for _, strategy := range f.strategies {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		applied, err := strategy.Apply(ctx, page)
		if err != nil {
			f.logger.Debug("fit strategy failed",
				logging.String("strategy", strategy.Name()),
				logging.Error(err),
			)
			continue
		}
		if !applied {
			continue
		}

		f.logger.Info("viewport fitted", logging.String("strategy", strategy.Name()))
		if _, ok := strategy.(noopStrategy); !ok {
			f.wait(ctx)
		}
		return Outcome{Applied: true, Strategy: strategy.Name()}, nil
	}

	// Unreachable with the default chain; a custom chain may exhaust.
	return Outcome{}, nil
}

func (f *Fitter) wait(ctx context.Context) {
	timer := time.NewTimer(f.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
