package pipeline

import (
	"context"
	"log/slog"
	"time"

	"reelcap/internal/history"
	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
	"reelcap/internal/stage"
	"reelcap/internal/stageexec"
)

// stageDef binds a handler to the status transition it drives.
type stageDef struct {
	name       string
	processing history.Status
	done       history.Status
	handler    stage.Handler
}

// Runner executes one capture job through its ordered stages. A stage failure
// stops the run; the job is already marked failed and persisted by then.
type Runner struct {
	env    *Env
	logger *slog.Logger
}

// NewRunner builds a Runner over the given environment.
func NewRunner(env *Env) *Runner {
	return &Runner{
		env:    env,
		logger: logging.NewComponentLogger(env.Logger, "pipeline"),
	}
}

// Run drives the job to a terminal state. The conversion stage only runs for
// formats that need it; a conversion failure still delivers the raw recording
// so the user keeps what was captured.
func (r *Runner) Run(ctx context.Context, job *history.Job) error {
	target, err := media.ParseFormat(job.Format)
	if err != nil {
		wrapped := services.Wrap(services.ErrUnsupportedFormat, "pipeline", "run", "parse target format", err)
		job.SetFailed(services.UserMessage(wrapped))
		if updateErr := r.env.Store.Update(ctx, job); updateErr != nil {
			r.logger.Error("failed to persist format rejection", logging.Error(updateErr))
		}
		return wrapped
	}

	stages := r.buildStages(target)
	started := time.Now()
	r.logger.Info("pipeline started",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("url", job.URL),
		logging.String("format", string(target)),
		logging.Int("stages", len(stages)),
	)

	for _, def := range stages {
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:     r.env.Logger,
			Store:      r.env.Store,
			Handler:    def.handler,
			StageName:  def.name,
			Processing: def.processing,
			Done:       def.done,
			Job:        job,
		})
		if err != nil {
			if def.name == "convert" {
				r.deliverRawFallback(ctx, job)
			}
			return err
		}
	}

	job.Status = history.StatusCompleted
	job.SetProgress("Completed", "capture delivered", 100)
	if err := r.env.Store.Update(ctx, job); err != nil {
		return err
	}

	r.logger.Info("pipeline completed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("output", job.OutputPath),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// HealthCheck reports per-stage readiness without running anything. Checked
// against the full stage list regardless of the eventual target format.
func (r *Runner) HealthCheck(ctx context.Context) []stage.Health {
	defs := r.buildStages(media.FormatMP4)
	healths := make([]stage.Health, 0, len(defs))
	for _, def := range defs {
		healths = append(healths, def.handler.HealthCheck(ctx))
	}
	return healths
}

func (r *Runner) buildStages(target media.Format) []stageDef {
	defs := []stageDef{
		{
			name:       "fit",
			processing: history.StatusFitting,
			done:       history.StatusRecording,
			handler:    &fitStage{env: r.env},
		},
		{
			name:       "record",
			processing: history.StatusRecording,
			done:       history.StatusRecorded,
			handler:    &recordStage{env: r.env},
		},
	}
	if target.RequiresConversion() {
		defs = append(defs, stageDef{
			name:       "convert",
			processing: history.StatusConverting,
			done:       history.StatusConverted,
			handler:    &convertStage{env: r.env, target: target},
		})
	}
	defs = append(defs, stageDef{
		name:       "deliver",
		processing: history.StatusDelivering,
		done:       history.StatusCompleted,
		handler:    &deliverStage{env: r.env, target: target},
	})
	return defs
}

// deliverRawFallback keeps the raw recording when conversion failed. The job
// stays failed; only the fallback path is recorded.
func (r *Runner) deliverRawFallback(ctx context.Context, job *history.Job) {
	if r.env.raw.Size() == 0 || r.env.Channel == nil {
		return
	}
	path, err := r.env.Channel.Deliver(r.env.raw, deliveryBasename(job)+media.FormatWebM.Extension())
	if err != nil {
		r.logger.Warn("raw fallback delivery failed", logging.Error(err))
		return
	}
	job.FallbackPath = path
	if err := r.env.Store.Update(ctx, job); err != nil {
		r.logger.Warn("failed to persist fallback path", logging.Error(err))
	}
	r.logger.Info("raw recording kept after conversion failure",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("fallback", path),
	)
}
