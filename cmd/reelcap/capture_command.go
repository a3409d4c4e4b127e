package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reelcap/internal/browser"
	"reelcap/internal/capture"
	"reelcap/internal/convert"
	"reelcap/internal/deliver"
	"reelcap/internal/engine"
	"reelcap/internal/history"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/pipeline"
	"reelcap/internal/services"
	"reelcap/internal/viewport"
)

func newCaptureCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		pageURL       string
		formatFlag    string
		fps           int
		durationMs    int
		fit           bool
		installDriver bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record a page's canvas or video surface and deliver it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(pageURL) == "" {
				return fmt.Errorf("--url is required")
			}
			if _, err := url.ParseRequestURI(pageURL); err != nil {
				return fmt.Errorf("invalid url %q: %w", pageURL, err)
			}

			if formatFlag == "" {
				formatFlag = cfg.Capture.DefaultFormat
			}
			format, err := media.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			if fps <= 0 {
				fps = cfg.Capture.FrameRate
			}
			if durationMs <= 0 {
				durationMs = cfg.Capture.DefaultDurationMs
			}
			if durationMs > cfg.Capture.MaxDurationMs {
				return fmt.Errorf("duration %dms exceeds the %dms maximum", durationMs, cfg.Capture.MaxDurationMs)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := history.Open(cfg.HistoryDBPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			instance, err := browser.Open(browser.Options{
				Headless:          cfg.Capture.Headless,
				ViewportWidth:     cfg.Capture.ViewportWidth,
				ViewportHeight:    cfg.Capture.ViewportHeight,
				NavigationTimeout: time.Duration(cfg.Capture.NavigationTimeout) * time.Second,
				InstallDriver:     installDriver,
			})
			if err != nil {
				return fmt.Errorf("open browser: %w", err)
			}
			defer instance.Close()

			if err := instance.Navigate(pageURL); err != nil {
				return err
			}
			page := instance.Page()

			loader := engine.NewLoader(engine.Options{
				Dir:          cfg.Paths.EngineDir,
				BinaryPath:   cfg.Engine.BinaryPath,
				ArtifactURL:  cfg.Engine.ArtifactURL,
				LoadTimeout:  time.Duration(cfg.Engine.LoadTimeout) * time.Second,
				FetchTimeout: time.Duration(cfg.Engine.FetchTimeout) * time.Second,
				FetchRetries: cfg.Engine.FetchRetries,
			}, logger)

			env := &pipeline.Env{
				Logger:  logger,
				Store:   store,
				Page:    page,
				Encoder: capture.NewScreencastEncoder(page, cfg.EncoderBinary(), logger),
				Fitter: viewport.New(viewport.Options{
					FrameWidth:  cfg.Capture.ViewportWidth,
					FrameHeight: cfg.Capture.ViewportHeight,
					Settle:      time.Duration(cfg.Viewport.SettleDelayMs) * time.Millisecond,
				}, logger),
				Channel: deliver.NewChannel(cfg.Paths.OutputDir, logger),
				AcquireEngine: func(ctx context.Context) (convert.EngineHandle, error) {
					return loader.EnsureReady(ctx)
				},
				Subscribe:   loader.Subscribe,
				JPEGQuality: cfg.Capture.JPEGQuality,
			}

			job := &history.Job{
				RequestID:    uuid.NewString(),
				URL:          pageURL,
				Format:       string(format),
				FrameRate:    fps,
				DurationMs:   durationMs,
				FitRequested: fit && cfg.Viewport.FitFullContent,
				Status:       history.StatusPending,
			}
			if err := store.Create(runCtx, job); err != nil {
				return fmt.Errorf("record job: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording %s for %dms (job %d)\n", pageURL, durationMs, job.ID)

			runner := pipeline.NewRunner(env)
			if err := runner.Run(runCtx, job); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), services.UserMessage(err))
				if job.FallbackPath != "" {
					fmt.Fprintf(out, "Raw recording kept at %s\n", job.FallbackPath)
				}
				return err
			}

			fmt.Fprintf(out, "Delivered %s\n", job.OutputPath)
			if job.FallbackPath != "" {
				fmt.Fprintf(out, "Raw recording at %s\n", job.FallbackPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "Page to record (required)")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Target format: webm, mp4, or gif")
	cmd.Flags().IntVar(&fps, "fps", 0, "Capture frame rate")
	cmd.Flags().IntVar(&durationMs, "duration", 0, "Recording duration in milliseconds")
	cmd.Flags().BoolVar(&fit, "fit", true, "Fit the page content to the frame before recording")
	cmd.Flags().BoolVar(&installDriver, "install-browser", false, "Download the browser driver on first use")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
