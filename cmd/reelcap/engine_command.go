package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelcap/internal/engine"
	"reelcap/internal/logging"
)

func newEngineCommand(cmdCtx *commandContext) *cobra.Command {
	engineCmd := &cobra.Command{
		Use:   "engine",
		Short: "Manage the conversion engine",
	}

	engineCmd.AddCommand(newEngineStatusCommand(cmdCtx))
	engineCmd.AddCommand(newEngineLoadCommand(cmdCtx))
	engineCmd.AddCommand(newEngineResetCommand(cmdCtx))

	return engineCmd
}

func newEngineStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how the conversion engine would be resolved",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if configured := strings.TrimSpace(cfg.Engine.BinaryPath); configured != "" {
				fmt.Fprintf(out, "Configured binary: %s\n", configured)
				if _, err := os.Stat(configured); err != nil {
					fmt.Fprintf(out, "  WARNING: %v\n", err)
				}
				return nil
			}

			if found, err := exec.LookPath("ffmpeg"); err == nil {
				fmt.Fprintf(out, "System binary: %s\n", found)
				return nil
			}

			installed := filepath.Join(cfg.Paths.EngineDir, "ffmpeg")
			if _, err := os.Stat(installed); err == nil {
				fmt.Fprintf(out, "Installed artifact: %s\n", installed)
				return nil
			}

			fmt.Fprintln(out, "Engine not provisioned")
			fmt.Fprintf(out, "  Next load fetches %s\n", cfg.Engine.ArtifactURL)
			return nil
		},
	}
}

func newEngineLoadCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Provision the conversion engine now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			loader := engine.NewLoader(engine.Options{
				Dir:          cfg.Paths.EngineDir,
				BinaryPath:   cfg.Engine.BinaryPath,
				ArtifactURL:  cfg.Engine.ArtifactURL,
				LoadTimeout:  time.Duration(cfg.Engine.LoadTimeout) * time.Second,
				FetchTimeout: time.Duration(cfg.Engine.FetchTimeout) * time.Second,
				FetchRetries: cfg.Engine.FetchRetries,
			}, logger)

			out := cmd.OutOrStdout()
			sampler := logging.NewProgressSampler(10)
			cancel := loader.Subscribe(func(percent int) {
				if sampler.ShouldLog(float64(percent), "load") {
					fmt.Fprintf(out, "Loading conversion engine... %d%%\n", percent)
				}
			})
			defer cancel()

			handle, err := loader.EnsureReady(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Engine ready: %s\n", handle.Binary())
			return nil
		},
	}
}

func newEngineResetCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard provisioned engine artifacts and slot storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.Paths.EngineDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "Engine directory is already empty")
					return nil
				}
				return fmt.Errorf("read engine dir: %w", err)
			}

			removed := 0
			for _, entry := range entries {
				if err := os.RemoveAll(filepath.Join(cfg.Paths.EngineDir, entry.Name())); err != nil {
					return fmt.Errorf("remove %s: %w", entry.Name(), err)
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d engine artifacts; the next load starts fresh\n", removed)
			return nil
		},
	}
}
