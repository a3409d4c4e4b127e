package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeViewport()
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EngineDir) == "" {
		c.Paths.EngineDir = defaultEngineDir
	}
	if c.Paths.EngineDir, err = expandPath(c.Paths.EngineDir); err != nil {
		return fmt.Errorf("paths.engine_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.DefaultFormat = strings.ToLower(strings.TrimSpace(c.Capture.DefaultFormat))
	if c.Capture.DefaultFormat == "" {
		c.Capture.DefaultFormat = defaultFormat
	}
	if c.Capture.FrameRate <= 0 {
		c.Capture.FrameRate = defaultFrameRate
	}
	if c.Capture.DefaultDurationMs <= 0 {
		c.Capture.DefaultDurationMs = defaultDurationMs
	}
	if c.Capture.MaxDurationMs <= 0 {
		c.Capture.MaxDurationMs = defaultMaxDurationMs
	}
	if c.Capture.JPEGQuality <= 0 || c.Capture.JPEGQuality > 100 {
		c.Capture.JPEGQuality = defaultJPEGQuality
	}
	if c.Capture.ViewportWidth <= 0 {
		c.Capture.ViewportWidth = defaultViewportWidth
	}
	if c.Capture.ViewportHeight <= 0 {
		c.Capture.ViewportHeight = defaultViewportHeight
	}
	if c.Capture.NavigationTimeout <= 0 {
		c.Capture.NavigationTimeout = defaultNavigationTimeout
	}
	c.Capture.EncoderBinary = strings.TrimSpace(c.Capture.EncoderBinary)
}

func (c *Config) normalizeViewport() {
	if c.Viewport.SettleDelayMs <= 0 {
		c.Viewport.SettleDelayMs = defaultSettleDelayMs
	}
}

func (c *Config) normalizeEngine() error {
	var err error
	c.Engine.BinaryPath = strings.TrimSpace(c.Engine.BinaryPath)
	if c.Engine.BinaryPath != "" {
		if c.Engine.BinaryPath, err = expandPath(c.Engine.BinaryPath); err != nil {
			return fmt.Errorf("engine.binary_path: %w", err)
		}
	}
	c.Engine.ArtifactURL = strings.TrimSpace(c.Engine.ArtifactURL)
	if c.Engine.LoadTimeout <= 0 {
		c.Engine.LoadTimeout = defaultLoadTimeout
	}
	if c.Engine.FetchTimeout <= 0 {
		c.Engine.FetchTimeout = defaultFetchTimeout
	}
	if c.Engine.FetchRetries <= 0 {
		c.Engine.FetchRetries = defaultFetchRetries
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
