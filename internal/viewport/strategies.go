package viewport

import (
	"context"
	"fmt"
	"strings"

	"reelcap/internal/browser"
)

// nativeControlStrategy clicks the page's own fit control when one exists.
type nativeControlStrategy struct{}

// Candidate selectors for a built-in fit control, most specific first.
var nativeControlSelectors = []string{
	`[data-action="zoom-to-fit"]`,
	`[aria-label="Zoom to fit"]`,
	`button[title="Zoom to fit"]`,
	`.zoom-to-fit`,
}

func (nativeControlStrategy) Name() string { return "native-control" }

func (nativeControlStrategy) Apply(ctx context.Context, page browser.Page) (bool, error) {
	for _, selector := range nativeControlSelectors {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		controls, err := page.QuerySelectorAll(selector)
		if err != nil {
			return false, fmt.Errorf("query %s: %w", selector, err)
		}
		for _, control := range controls {
			visible, err := control.IsVisible()
			if err != nil || !visible {
				continue
			}
			if err := control.Click(); err != nil {
				return false, fmt.Errorf("click fit control: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// shortcutStrategy sends the keyboard chord pages commonly bind to
// zoom-to-fit.
type shortcutStrategy struct{}

const fitShortcut = "Shift+1"

func (shortcutStrategy) Name() string { return "shortcut" }

func (shortcutStrategy) Apply(ctx context.Context, page browser.Page) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := page.Press(fitShortcut); err != nil {
		return false, fmt.Errorf("press %s: %w", fitShortcut, err)
	}
	return true, nil
}

// geometricStrategy computes a zoom ratio from the union bounding box of the
// page's content nodes and writes it straight into the zoom control.
type geometricStrategy struct {
	frameWidth  int
	frameHeight int
}

func (geometricStrategy) Name() string { return "geometric" }

// geometricFitScript measures the union box of content nodes, derives the
// ratio that fits it inside the given frame with a 10% margin, writes the
// ratio into the page's zoom input, and dispatches input and change events so
// the page reacts as if the user typed it. Returns the applied ratio, or 0
// when there is nothing to measure or no control to drive.
const geometricFitScript = `([frameWidth, frameHeight]) => {
	const nodes = document.querySelectorAll('[data-content-node], .content-node, canvas, video');
	let minX = Infinity, minY = Infinity, maxX = -Infinity, maxY = -Infinity;
	for (const node of nodes) {
		const box = node.getBoundingClientRect();
		if (box.width <= 0 || box.height <= 0) continue;
		minX = Math.min(minX, box.left);
		minY = Math.min(minY, box.top);
		maxX = Math.max(maxX, box.right);
		maxY = Math.max(maxY, box.bottom);
	}
	if (minX === Infinity) return 0;
	const boxWidth = maxX - minX;
	const boxHeight = maxY - minY;
	const ratio = Math.min(frameWidth / boxWidth, frameHeight / boxHeight) * 0.9;
	if (!isFinite(ratio) || ratio <= 0) return 0;
	const control = document.querySelector('input[data-zoom], input.zoom-level, #zoom');
	if (!control) return 0;
	control.value = String(ratio);
	control.dispatchEvent(new Event('input', { bubbles: true }));
	control.dispatchEvent(new Event('change', { bubbles: true }));
	return ratio;
}`

func (g *geometricStrategy) Apply(ctx context.Context, page browser.Page) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if g.frameWidth <= 0 || g.frameHeight <= 0 {
		return false, nil
	}
	result, err := page.Evaluate(geometricFitScript, []int{g.frameWidth, g.frameHeight})
	if err != nil {
		return false, fmt.Errorf("evaluate geometric fit: %w", err)
	}
	return appliedRatio(result) > 0, nil
}

func appliedRatio(result any) float64 {
	switch v := result.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return 0
		}
		var ratio float64
		if _, err := fmt.Sscanf(v, "%g", &ratio); err != nil {
			return 0
		}
		return ratio
	default:
		return 0
	}
}

// noopStrategy terminates the chain; recording proceeds with the page as-is.
type noopStrategy struct{}

func (noopStrategy) Name() string { return "noop" }

func (noopStrategy) Apply(context.Context, browser.Page) (bool, error) {
	return true, nil
}
