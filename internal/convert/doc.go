// Package convert turns a raw recording into the requested target format by
// driving conversion engine invocations over named byte slots.
package convert
