// Package logging builds the slog loggers used across reelcap: a console
// handler for interactive runs, a JSON handler for machine consumption, and
// small helpers (typed attrs, component loggers, progress sampling) that keep
// log call sites consistent.
package logging
