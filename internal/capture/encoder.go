package capture

import (
	"context"

	"reelcap/internal/media"
)

// EncodeOptions configures a streaming encoder run.
type EncodeOptions struct {
	FrameRate   int
	JPEGQuality int
}

// Encoder opens a chunked encoding stream against a frame source.
type Encoder interface {
	Start(ctx context.Context, source FrameSource, opts EncodeOptions) (Stream, error)
	// Container reports the format the encoder's chunk stream concatenates
	// into.
	Container() media.Format
}

// Stream is a live encoding run. Chunks yields encoded fragments in arrival
// order and closes once the run ends; Err is valid after Chunks closes.
type Stream interface {
	Chunks() <-chan []byte
	// Stop ends the run. Idempotent; pending chunks still drain through
	// Chunks before it closes.
	Stop()
	Err() error
}
