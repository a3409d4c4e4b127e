package pipeline

import (
	"context"
	"fmt"
	"time"

	"reelcap/internal/capture"
	"reelcap/internal/convert"
	"reelcap/internal/history"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
	"reelcap/internal/stage"
)

// fitStage adjusts the page viewport before anything is recorded.
type fitStage struct {
	env *Env
}

func (s *fitStage) Prepare(ctx context.Context, job *history.Job) error {
	if s.env.Page == nil {
		return services.Wrap(services.ErrValidation, "fit", "prepare", "no page attached", nil)
	}
	return nil
}

func (s *fitStage) Execute(ctx context.Context, job *history.Job) error {
	if !job.FitRequested {
		job.SetProgress("Fitting", "fit not requested, page left as-is", 100)
		return nil
	}

	outcome, err := s.env.Fitter.Fit(ctx, s.env.Page)
	if err != nil {
		return err
	}
	job.FitStrategy = outcome.Strategy
	job.SetProgress("Fitting", "viewport fitted via "+outcome.Strategy, 100)
	return nil
}

func (s *fitStage) HealthCheck(ctx context.Context) stage.Health {
	if s.env.Page == nil {
		return stage.Unhealthy("fit", "no page attached")
	}
	return stage.Healthy("fit")
}

// recordStage locates the frame source and runs the recording session.
type recordStage struct {
	env *Env
}

func (s *recordStage) Prepare(ctx context.Context, job *history.Job) error {
	// Located after the fit stage so the bounding box reflects the fitted
	// layout.
	source, err := capture.Locate(ctx, s.env.Page)
	if err != nil {
		return err
	}
	s.env.source = source
	job.SurfaceWidth = source.Width()
	job.SurfaceHeight = source.Height()
	return nil
}

func (s *recordStage) Execute(ctx context.Context, job *history.Job) error {
	session := capture.NewSession(s.env.Encoder, s.env.Logger)
	err := session.Start(ctx, s.env.source, capture.SessionOptions{
		FrameRate:   job.FrameRate,
		Duration:    time.Duration(job.DurationMs) * time.Millisecond,
		JPEGQuality: s.env.JPEGQuality,
	})
	if err != nil {
		return err
	}

	asset, err := session.Wait(ctx)
	if err != nil {
		return err
	}
	s.env.raw = asset
	job.SetProgress("Recording", fmt.Sprintf("recorded %d bytes", asset.Size()), 100)
	return nil
}

func (s *recordStage) HealthCheck(ctx context.Context) stage.Health {
	if s.env.Encoder == nil {
		return stage.Unhealthy("record", "no encoder attached")
	}
	return stage.Healthy("record")
}

// convertStage loads the conversion engine and transcodes the raw recording.
type convertStage struct {
	env    *Env
	target media.Format
}

func (s *convertStage) Prepare(ctx context.Context, job *history.Job) error {
	var unsubscribe func()
	if s.env.Subscribe != nil {
		sampler := logging.NewProgressSampler(5)
		unsubscribe = s.env.Subscribe(func(percent int) {
			if !sampler.ShouldLog(float64(percent), "engine-load") {
				return
			}
			job.SetProgress("Converting", "loading conversion engine", float64(percent))
			// Best effort; a lost progress row never fails the load.
			_ = s.env.Store.UpdateProgress(ctx, job)
		})
	}

	handle, err := s.env.AcquireEngine(ctx)
	if unsubscribe != nil {
		unsubscribe()
	}
	if err != nil {
		return err
	}
	s.env.handle = handle
	return nil
}

func (s *convertStage) Execute(ctx context.Context, job *history.Job) error {
	pipeline := convert.New(s.env.handle, s.env.Logger)
	converted, err := pipeline.Convert(ctx, s.env.raw, s.target, func(percent int) {
		job.SetProgress("Converting", "converting to "+string(s.target), float64(percent))
		_ = s.env.Store.UpdateProgress(ctx, job)
	})
	if err != nil {
		return err
	}
	s.env.converted = converted
	return nil
}

func (s *convertStage) HealthCheck(ctx context.Context) stage.Health {
	if s.env.AcquireEngine == nil {
		return stage.Unhealthy("convert", "no engine provider attached")
	}
	return stage.Healthy("convert")
}

// deliverStage writes the finished assets into the output directory. For
// converted formats the raw recording is delivered too, as a fallback the
// user keeps even if the converted file is unusable.
type deliverStage struct {
	env    *Env
	target media.Format
}

func (s *deliverStage) Prepare(ctx context.Context, job *history.Job) error {
	if s.env.Channel == nil {
		return services.Wrap(services.ErrValidation, "deliver", "prepare", "no delivery channel attached", nil)
	}
	return nil
}

func (s *deliverStage) Execute(ctx context.Context, job *history.Job) error {
	base := deliveryBasename(job)

	if s.target == media.FormatWebM {
		path, err := s.env.Channel.Deliver(s.env.raw, base+media.FormatWebM.Extension())
		if err != nil {
			return err
		}
		job.OutputPath = path
		job.SetProgress("Delivering", "raw recording delivered", 100)
		return nil
	}

	if fallback, err := s.env.Channel.Deliver(s.env.raw, base+media.FormatWebM.Extension()); err == nil {
		job.FallbackPath = fallback
	} else {
		s.env.Logger.Warn("raw fallback delivery failed", logging.Error(err))
	}

	path, err := s.env.Channel.Deliver(s.env.converted, base+s.target.Extension())
	if err != nil {
		return err
	}
	job.OutputPath = path
	job.SetProgress("Delivering", "converted asset delivered", 100)
	return nil
}

func (s *deliverStage) HealthCheck(ctx context.Context) stage.Health {
	if s.env.Channel == nil {
		return stage.Unhealthy("deliver", "no delivery channel attached")
	}
	return stage.Healthy("deliver")
}

func deliveryBasename(job *history.Job) string {
	if job.RequestID != "" {
		return "reelcap-" + job.RequestID
	}
	return fmt.Sprintf("reelcap-job-%d", job.ID)
}
