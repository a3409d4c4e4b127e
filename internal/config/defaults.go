package config

const (
	defaultStagingDir        = "~/.local/share/reelcap/staging"
	defaultOutputDir         = "~/Videos/reelcap"
	defaultLogDir            = "~/.local/share/reelcap/logs"
	defaultEngineDir         = "~/.local/share/reelcap/engine"
	defaultFormat            = "webm"
	defaultFrameRate         = 12
	defaultDurationMs        = 5000
	defaultMaxDurationMs     = 120000
	defaultJPEGQuality       = 80
	defaultViewportWidth     = 1280
	defaultViewportHeight    = 720
	defaultNavigationTimeout = 30
	defaultSettleDelayMs     = 600
	defaultEngineArtifactURL = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.0/ffmpeg-linux-x64"
	defaultLoadTimeout       = 45
	defaultFetchTimeout      = 30
	defaultFetchRetries      = 3
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			EngineDir:  defaultEngineDir,
		},
		Capture: Capture{
			DefaultFormat:     defaultFormat,
			FrameRate:         defaultFrameRate,
			DefaultDurationMs: defaultDurationMs,
			MaxDurationMs:     defaultMaxDurationMs,
			JPEGQuality:       defaultJPEGQuality,
			ViewportWidth:     defaultViewportWidth,
			ViewportHeight:    defaultViewportHeight,
			NavigationTimeout: defaultNavigationTimeout,
			Headless:          true,
		},
		Viewport: Viewport{
			FitFullContent: true,
			SettleDelayMs:  defaultSettleDelayMs,
		},
		Engine: Engine{
			ArtifactURL:  defaultEngineArtifactURL,
			LoadTimeout:  defaultLoadTimeout,
			FetchTimeout: defaultFetchTimeout,
			FetchRetries: defaultFetchRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
