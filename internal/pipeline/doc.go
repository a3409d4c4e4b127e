// Package pipeline orchestrates one capture job through its ordered stages:
// fit the viewport, record the surface, convert the recording, deliver the
// results.
package pipeline
