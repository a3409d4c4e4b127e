// Package engine provisions the conversion engine binary and exposes it
// through generation-versioned handles with private slot storage.
package engine
