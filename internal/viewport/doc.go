// Package viewport adjusts the page so the recordable surface fills as much
// of the frame as possible before a recording starts.
package viewport
