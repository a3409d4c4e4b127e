// Package services defines the error taxonomy shared across pipeline stages.
//
// Stage code wraps failures with a sentinel marker so callers can classify
// them with errors.Is, and the CLI maps each class to corrective guidance via
// UserMessage.
package services
