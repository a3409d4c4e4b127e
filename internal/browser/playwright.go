package browser

import (
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Options configures a managed browser instance.
type Options struct {
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	// InstallDriver downloads the playwright driver and browser on first
	// use. Disabled in environments that pre-provision them.
	InstallDriver bool
}

// Instance owns a Chromium process and a single page.
type Instance struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	navTime time.Duration
}

// Open launches a managed Chromium instance with one blank page.
func Open(opts Options) (*Instance, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if opts.InstallDriver {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	width := opts.ViewportWidth
	height := opts.ViewportHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}

	navTime := opts.NavigationTimeout
	if navTime <= 0 {
		navTime = 30 * time.Second
	}
	page.SetDefaultTimeout(float64(navTime.Milliseconds()))

	return &Instance{pw: pw, browser: browser, context: context, page: page, navTime: navTime}, nil
}

// Navigate loads the given URL and waits for the network to go idle.
func (i *Instance) Navigate(url string) error {
	waitUntil := playwright.WaitUntilStateNetworkidle
	_, err := i.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(float64(i.navTime.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Page returns the instance's page behind the narrow Page interface.
func (i *Instance) Page() Page {
	return &pageAdapter{page: i.page}
}

// Close tears down the page, context, browser, and driver.
func (i *Instance) Close() error {
	var firstErr error
	if i.context != nil {
		if err := i.context.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if i.browser != nil {
		if err := i.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if i.pw != nil {
		if err := i.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type pageAdapter struct {
	page playwright.Page
}

func (p *pageAdapter) URL() string {
	return p.page.URL()
}

func (p *pageAdapter) QuerySelectorAll(selector string) ([]Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(handles))
	for _, handle := range handles {
		elements = append(elements, &elementAdapter{handle: handle})
	}
	return elements, nil
}

func (p *pageAdapter) Evaluate(expression string, args ...any) (any, error) {
	if len(args) > 0 {
		return p.page.Evaluate(expression, args[0])
	}
	return p.page.Evaluate(expression)
}

func (p *pageAdapter) Press(key string) error {
	return p.page.Keyboard().Press(key)
}

func (p *pageAdapter) Screenshot(opts ScreenshotOptions) ([]byte, error) {
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	pwOpts := playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(quality),
	}
	if opts.Clip != nil {
		pwOpts.Clip = &playwright.Rect{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
		}
	}
	return p.page.Screenshot(pwOpts)
}

type elementAdapter struct {
	handle playwright.ElementHandle
}

func (e *elementAdapter) BoundingBox() (Rect, error) {
	box, err := e.handle.BoundingBox()
	if err != nil {
		return Rect{}, err
	}
	if box == nil {
		return Rect{}, nil
	}
	return Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *elementAdapter) TextContent() (string, error) {
	return e.handle.TextContent()
}

func (e *elementAdapter) GetAttribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *elementAdapter) IsVisible() (bool, error) {
	return e.handle.IsVisible()
}

func (e *elementAdapter) Click() error {
	return e.handle.Click()
}
