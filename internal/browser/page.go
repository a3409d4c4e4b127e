package browser

// Rect is an element bounding box in page pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Area returns the rectangle's area in square pixels.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// ScreenshotOptions controls a single frame grab.
type ScreenshotOptions struct {
	// Clip restricts the grab to a page region; nil captures the viewport.
	Clip *Rect
	// JPEGQuality is 1-100; zero uses the adapter default.
	JPEGQuality int
}

// Page is the subset of page behaviour the pipeline needs.
type Page interface {
	URL() string
	QuerySelectorAll(selector string) ([]Element, error)
	Evaluate(expression string, args ...any) (any, error)
	Press(key string) error
	Screenshot(opts ScreenshotOptions) ([]byte, error)
}

// Element is the subset of element behaviour the pipeline needs.
type Element interface {
	BoundingBox() (Rect, error)
	TextContent() (string, error)
	GetAttribute(name string) (string, error)
	IsVisible() (bool, error)
	Click() error
}
