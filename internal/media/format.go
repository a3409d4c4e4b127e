package media

import (
	"bytes"
	"fmt"
	"strings"
)

// Format identifies a delivery container.
type Format string

const (
	// FormatWebM is the raw capture container; delivering it requires no
	// conversion pass.
	FormatWebM Format = "webm"
	// FormatMP4 is produced by a single direct transcode invocation.
	FormatMP4 Format = "mp4"
	// FormatGIF is produced by the two-pass palette conversion.
	FormatGIF Format = "gif"
)

var allFormats = []Format{FormatWebM, FormatMP4, FormatGIF}

// ParseFormat converts user input into a known Format.
func ParseFormat(value string) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, f := range allFormats {
		if f == normalized {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (expected one of: webm, mp4, gif)", value)
}

// AllFormats returns the ordered list of supported formats.
func AllFormats() []Format {
	cp := make([]Format, len(allFormats))
	copy(cp, allFormats)
	return cp
}

// Extension returns the filename extension for the format, dot included.
func (f Format) Extension() string {
	return "." + string(f)
}

// MIME returns the media type used when handing the asset off.
func (f Format) MIME() string {
	switch f {
	case FormatWebM:
		return "video/webm"
	case FormatMP4:
		return "video/mp4"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// RequiresConversion reports whether delivering this format needs the
// conversion engine. The raw capture container ships as recorded.
func (f Format) RequiresConversion() bool {
	return f != FormatWebM
}

// Asset is a finalized media payload plus the container it claims to be.
type Asset struct {
	Bytes  []byte
	Format Format
}

// Size returns the payload length in bytes.
func (a Asset) Size() int {
	return len(a.Bytes)
}

// MIME returns the asset's media type.
func (a Asset) MIME() string {
	return a.Format.MIME()
}

var (
	ebmlMagic  = []byte{0x1a, 0x45, 0xdf, 0xa3}
	gif87Magic = []byte("GIF87a")
	gif89Magic = []byte("GIF89a")
	ftypMagic  = []byte("ftyp")
)

// Sniff inspects the leading bytes of a payload and reports the container it
// carries. Used by the delivery channel to reject payloads that are not
// recognized media before anything touches the filesystem.
func Sniff(data []byte) (Format, bool) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], ebmlMagic):
		return FormatWebM, true
	case len(data) >= 6 && (bytes.Equal(data[:6], gif87Magic) || bytes.Equal(data[:6], gif89Magic)):
		return FormatGIF, true
	case len(data) >= 12 && bytes.Equal(data[4:8], ftypMagic):
		return FormatMP4, true
	default:
		return "", false
	}
}
