package capture

import (
	"context"

	"reelcap/internal/browser"
	"reelcap/internal/services"
)

// frameSourceSelector enumerates every surface kind the encoder can stream.
const frameSourceSelector = "canvas, video"

// FrameSource is a handle to the surface chosen for recording.
type FrameSource struct {
	Element browser.Element
	Rect    browser.Rect
}

// Width returns the surface width in whole pixels.
func (f FrameSource) Width() int { return int(f.Rect.Width) }

// Height returns the surface height in whole pixels.
func (f FrameSource) Height() int { return int(f.Rect.Height) }

// Locate enumerates candidate surfaces on the page and returns the largest by
// area, ties broken by encounter order. It has no side effects on the page and
// can be re-run after the viewport changes.
func Locate(ctx context.Context, page browser.Page) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return FrameSource{}, err
	}
	candidates, err := page.QuerySelectorAll(frameSourceSelector)
	if err != nil {
		return FrameSource{}, services.Wrap(services.ErrNoFrameSource, "capture", "locate", "enumerate candidate surfaces", err)
	}

	var (
		best     FrameSource
		bestArea float64
	)
	for _, candidate := range candidates {
		rect, err := candidate.BoundingBox()
		if err != nil {
			// A detached or unrendered candidate is not an error; it
			// simply cannot win.
			continue
		}
		if area := rect.Area(); area > bestArea {
			best = FrameSource{Element: candidate, Rect: rect}
			bestArea = area
		}
	}

	if bestArea <= 0 {
		return FrameSource{}, services.Wrap(services.ErrNoFrameSource, "capture", "locate", "no candidate surface has a drawable area", nil)
	}
	return best, nil
}
