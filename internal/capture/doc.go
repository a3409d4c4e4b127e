// Package capture locates the recordable surface on a page and drives the
// recording session that turns it into a raw media asset.
package capture
