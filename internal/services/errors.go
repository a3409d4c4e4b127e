package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFrameSource indicates the locator found no usable surface on the page.
	ErrNoFrameSource = errors.New("no frame source found")
	// ErrEmptyRecording indicates a session finalized with zero bytes.
	ErrEmptyRecording = errors.New("recording produced no data")
	// ErrEncoderRuntime indicates the streaming encoder failed mid-session.
	ErrEncoderRuntime = errors.New("encoder runtime error")
	// ErrEngineLoadTimeout indicates the engine load ceiling elapsed.
	ErrEngineLoadTimeout = errors.New("engine load timed out")
	// ErrEngineLoadFailed indicates engine artifacts could not be fetched or
	// instantiated. Sticky on the loader until an explicit reset.
	ErrEngineLoadFailed = errors.New("engine load failed")
	// ErrConversionFailed indicates an engine invocation failed.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrInvalidDeliveryPayload indicates the delivery channel rejected a
	// payload that is not recognized media.
	ErrInvalidDeliveryPayload = errors.New("invalid delivery payload")
	// ErrUnsupportedFormat indicates a target format outside the known set.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrConfiguration indicates bad or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage maps a classified error to the corrective guidance shown to the
// user. Each failure class calls for a different next step, so the mapping is
// deliberately explicit.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFrameSource):
		return "No recordable surface was found on the page; reload the page and try again"
	case errors.Is(err, ErrEmptyRecording):
		return "Recording produced nothing; check that the surface is visible and try again"
	case errors.Is(err, ErrEncoderRuntime):
		return "The recording encoder failed; check that ffmpeg is installed and retry"
	case errors.Is(err, ErrEngineLoadTimeout), errors.Is(err, ErrEngineLoadFailed):
		return "Conversion tools failed to load; run `reelcap engine reset` and retry the load"
	case errors.Is(err, ErrConversionFailed):
		return "Conversion failed; the raw recording was kept, retry the conversion"
	case errors.Is(err, ErrInvalidDeliveryPayload):
		return "The produced asset is not recognized media and was not saved"
	case errors.Is(err, ErrUnsupportedFormat):
		return "Requested format is not supported; choose webm, mp4, or gif"
	case errors.Is(err, ErrConfiguration):
		return "Configuration is invalid; run `reelcap config show` to inspect it"
	default:
		return err.Error()
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
