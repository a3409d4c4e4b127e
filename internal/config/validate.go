package config

import (
	"fmt"
	"strings"
)

var validFormats = map[string]struct{}{
	"webm": {},
	"mp4":  {},
	"gif":  {},
}

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks cross-field constraints after normalization.
func (c *Config) Validate() error {
	if _, ok := validFormats[c.Capture.DefaultFormat]; !ok {
		return fmt.Errorf("capture.default_format: unsupported value %q", c.Capture.DefaultFormat)
	}
	if c.Capture.FrameRate > 60 {
		return fmt.Errorf("capture.frame_rate: %d exceeds the 60 fps ceiling", c.Capture.FrameRate)
	}
	if c.Capture.DefaultDurationMs > c.Capture.MaxDurationMs {
		return fmt.Errorf("capture.default_duration_ms: %d exceeds max_duration_ms %d",
			c.Capture.DefaultDurationMs, c.Capture.MaxDurationMs)
	}
	if c.Engine.BinaryPath == "" && c.Engine.ArtifactURL == "" {
		return fmt.Errorf("engine: either binary_path or artifact_url must be set")
	}
	if c.Engine.ArtifactURL != "" && !strings.HasPrefix(c.Engine.ArtifactURL, "http") {
		return fmt.Errorf("engine.artifact_url: %q is not an http(s) URL", c.Engine.ArtifactURL)
	}
	if _, ok := validLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
