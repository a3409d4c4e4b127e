// Package browser wraps playwright-go behind the narrow Page and Element
// interfaces the capture and viewport code depends on, so those packages can
// be exercised against fakes without a running browser.
package browser
