package viewport

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelcap/internal/browser"
	"reelcap/internal/logging"
)

type stubStrategy struct {
	name    string
	applied bool
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Apply(ctx context.Context, page browser.Page) (bool, error) {
	s.calls++
	return s.applied, s.err
}

type stubPage struct{}

func (stubPage) URL() string                                        { return "" }
func (stubPage) QuerySelectorAll(string) ([]browser.Element, error) { return nil, nil }
func (stubPage) Evaluate(string, ...any) (any, error)               { return nil, nil }
func (stubPage) Press(string) error                                 { return nil }
func (stubPage) Screenshot(browser.ScreenshotOptions) ([]byte, error) {
	return nil, nil
}

func newTestFitter(strategies ...Strategy) *Fitter {
	return New(Options{
		FrameWidth:  1280,
		FrameHeight: 720,
		Settle:      time.Millisecond,
		Strategies:  strategies,
	}, logging.NewNop())
}

func TestFitFirstSuccessWins(t *testing.T) {
	first := &stubStrategy{name: "first", applied: true}
	second := &stubStrategy{name: "second", applied: true}
	fitter := newTestFitter(first, second)

	outcome, err := fitter.Fit(context.Background(), stubPage{})
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if !outcome.Applied || outcome.Strategy != "first" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if second.calls != 0 {
		t.Fatal("chain did not stop at the first success")
	}
}

func TestFitSwallowsStrategyFailures(t *testing.T) {
	failing := &stubStrategy{name: "failing", err: errors.New("no control")}
	declining := &stubStrategy{name: "declining", applied: false}
	winning := &stubStrategy{name: "winning", applied: true}
	fitter := newTestFitter(failing, declining, winning)

	outcome, err := fitter.Fit(context.Background(), stubPage{})
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if outcome.Strategy != "winning" {
		t.Fatalf("expected the chain to continue past failures, got %+v", outcome)
	}
	if failing.calls != 1 || declining.calls != 1 {
		t.Fatal("earlier strategies were not attempted")
	}
}

func TestFitExhaustedChain(t *testing.T) {
	failing := &stubStrategy{name: "failing", err: errors.New("nope")}
	fitter := newTestFitter(failing)

	outcome, err := fitter.Fit(context.Background(), stubPage{})
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if outcome.Applied {
		t.Fatalf("exhausted chain should report no application, got %+v", outcome)
	}
}

func TestFitDefaultChainResolvesWithNoop(t *testing.T) {
	// The stub page has no fit control, ignores the shortcut failure path,
	// and has no measurable content, so only the terminal no-op applies.
	fitter := New(Options{FrameWidth: 1280, FrameHeight: 720, Settle: time.Millisecond}, logging.NewNop())

	outcome, err := fitter.Fit(context.Background(), pageWithoutShortcut{})
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if !outcome.Applied || outcome.Strategy != "noop" {
		t.Fatalf("expected the no-op terminal strategy, got %+v", outcome)
	}
}

type pageWithoutShortcut struct {
	stubPage
}

func (pageWithoutShortcut) Press(string) error { return errors.New("keyboard unavailable") }

func TestFitHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fitter := newTestFitter(&stubStrategy{name: "never", applied: true})

	_, err := fitter.Fit(ctx, stubPage{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestShortcutStrategyReportsApplied(t *testing.T) {
	applied, err := (shortcutStrategy{}).Apply(context.Background(), stubPage{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied {
		t.Fatal("shortcut press should count as applied")
	}
}

func TestGeometricStrategyRequiresFrame(t *testing.T) {
	strategy := &geometricStrategy{}
	applied, err := strategy.Apply(context.Background(), stubPage{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if applied {
		t.Fatal("geometric fit without frame dimensions should decline")
	}
}

func TestGeometricStrategyReadsRatio(t *testing.T) {
	strategy := &geometricStrategy{frameWidth: 1280, frameHeight: 720}
	page := evaluatePage{result: 0.85}
	applied, err := strategy.Apply(context.Background(), page)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied {
		t.Fatal("a positive ratio should count as applied")
	}

	page = evaluatePage{result: 0.0}
	applied, err = strategy.Apply(context.Background(), page)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if applied {
		t.Fatal("a zero ratio means no control was driven")
	}
}

type evaluatePage struct {
	stubPage
	result any
}

func (p evaluatePage) Evaluate(string, ...any) (any, error) { return p.result, nil }
