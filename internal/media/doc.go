// Package media defines the asset and container format vocabulary shared by
// the capture, conversion, and delivery layers.
package media
