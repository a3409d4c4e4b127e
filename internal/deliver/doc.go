// Package deliver writes finished media assets into the user's output
// directory.
package deliver
